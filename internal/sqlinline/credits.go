package sqlinline

const QSelectCredits = `--sql 09cca74d-ace9-40a9-8e35-779f3c8302f4
select credits
from user_credits
where user_id = $1::text;
`

// QDeductCredits charges at most once per provider job: the balance guard and
// the audit row are written in one statement, and the unique index on
// credit_transactions.provider_job_id rejects a concurrent second charge.
const QDeductCredits = `--sql 8b3b66c9-06eb-48f7-9f8e-676192ce6dab
with debited as (
  update user_credits
  set credits = credits - $2::int,
      updated_at = now()
  where user_id = $1::text
    and credits >= $2::int
    and not exists (
      select 1 from credit_transactions where provider_job_id = $4::text
    )
  returning user_id, credits
),
logged as (
  insert into credit_transactions (user_id, amount, reason, provider_job_id, created_at)
  select user_id, -$2::int, $3::text, $4::text, now()
  from debited
  returning id
)
select credits from debited;
`

const QGrantCredits = `--sql d63518df-8c05-4940-a60d-288af69d0676
with granted as (
  insert into user_credits (user_id, credits, created_at, updated_at)
  values ($1::text, $2::int, now(), now())
  on conflict (user_id) do update set
    credits = user_credits.credits + excluded.credits,
    updated_at = now()
  returning user_id, credits
),
logged as (
  insert into credit_transactions (user_id, amount, reason, created_at)
  select user_id, $2::int, $3::text, now()
  from granted
  returning id
)
select credits from granted;
`

const QListCreditTransactions = `--sql 89610bfa-0b3d-4012-961f-fd3e0140cf27
select id, user_id, amount, reason, coalesce(provider_job_id, ''), created_at
from credit_transactions
where user_id = $1::text
order by created_at desc, id desc
limit $2::int;
`
