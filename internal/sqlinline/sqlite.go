package sqlinline

// SQLite renditions of the history and ledger statements, used by the
// embedded store. Placeholders are positional (?).

const QLiteInsertTransform = `--sql 430188f4-1eb1-4056-80b0-9aaca5921bdc
insert into transform_history (
  id, user_id, type, style_id, provider_job_id, status,
  original_image_url, generated_image_url, custom_prompt, credits_used,
  created_at, updated_at
)
values (?, ?, ?, nullif(?, ''), ?, 'processing', nullif(?, ''), nullif(?, ''), nullif(?, ''), ?, ?, ?);
`

const QLiteUpdateTransformStatus = `--sql d795b45e-7bea-4dfe-b286-0361d80f8d92
update transform_history
set status = ?, result_url = nullif(?, ''), error_message = nullif(?, ''), updated_at = ?
where provider_job_id = ?
  and status = 'processing';
`

const QLiteSelectTransformByProviderJob = `--sql c18046b8-6f86-4396-ac54-f158692ff1cb
select id, user_id, type, coalesce(style_id, ''), provider_job_id, status,
       coalesce(original_image_url, ''), coalesce(generated_image_url, ''),
       coalesce(result_url, ''), coalesce(error_message, ''), coalesce(custom_prompt, ''),
       credits_used, created_at, updated_at
from transform_history
where provider_job_id = ?
limit 1;
`

const QLiteCountTransforms = `--sql 4b18ee6b-0656-4952-82ce-93b18124d963
select count(*)
from transform_history
where user_id = ?1
  and (?2 = '' or status = ?2)
  and (?3 = '' or type = ?3);
`

const QLiteListTransforms = `--sql 9b3989a8-5be2-4eed-af88-aa1dc9844750
select id, user_id, type, coalesce(style_id, ''), provider_job_id, status,
       coalesce(original_image_url, ''), coalesce(generated_image_url, ''),
       coalesce(result_url, ''), coalesce(error_message, ''), coalesce(custom_prompt, ''),
       credits_used, created_at, updated_at
from transform_history
where user_id = ?1
  and (?2 = '' or status = ?2)
  and (?3 = '' or type = ?3)
order by created_at desc, rowid desc
limit ?4 offset ?5;
`

const QLiteListStaleTransforms = `--sql c91519bc-a19f-49e9-bc86-f55c081738bb
select id, user_id, type, coalesce(style_id, ''), provider_job_id, status,
       coalesce(original_image_url, ''), coalesce(generated_image_url, ''),
       coalesce(result_url, ''), coalesce(error_message, ''), coalesce(custom_prompt, ''),
       credits_used, created_at, updated_at
from transform_history
where status = 'processing'
  and updated_at < ?
order by updated_at asc, rowid asc
limit ?;
`

const QLiteSelectCredits = `--sql efd35769-f4b0-451b-a02e-d052ad6993e2
select credits from user_credits where user_id = ?;
`

const QLiteDebitCredits = `--sql f6d74451-fc67-41cd-97af-1f65ab30e3ae
update user_credits
set credits = credits - ?2, updated_at = ?3
where user_id = ?1
  and credits >= ?2;
`

const QLiteInsertCreditTransaction = `--sql 066fe9a3-127c-4cd4-b040-c2b1eea60300
insert into credit_transactions (user_id, amount, reason, provider_job_id, created_at)
values (?, ?, ?, nullif(?, ''), ?);
`

const QLiteCreditTransactionExists = `--sql 8cead135-7382-4db0-87ac-0bdc01fee18f
select count(*) from credit_transactions where provider_job_id = ?;
`

const QLiteGrantCredits = `--sql 30155532-55ad-44dc-a8b4-2261a2e1517a
insert into user_credits (user_id, credits, created_at, updated_at)
values (?1, ?2, ?3, ?3)
on conflict (user_id) do update set
  credits = credits + excluded.credits,
  updated_at = excluded.updated_at;
`

const QLiteListCreditTransactions = `--sql 1b1efbbf-8f7c-4992-b5c7-b6c2158dcc20
select id, user_id, amount, reason, coalesce(provider_job_id, ''), created_at
from credit_transactions
where user_id = ?
order by created_at desc, id desc
limit ?;
`
