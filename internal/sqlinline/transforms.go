package sqlinline

const QInsertTransform = `--sql 75ddb8ab-1f97-46cc-b83e-45b1eee72633
insert into transform_history (
  id, user_id, type, style_id, provider_job_id, status,
  original_image_url, generated_image_url, custom_prompt, credits_used,
  created_at, updated_at
)
values (
  $1::uuid, $2::text, $3::text, nullif($4::text, ''), $5::text, 'processing',
  nullif($6::text, ''), nullif($7::text, ''), nullif($8::text, ''), $9::int,
  now(), now()
)
returning id::text;
`

const QUpdateTransformStatus = `--sql 45c8a7af-2b33-40fc-a0b0-ee9398f2c30b
update transform_history
set status        = $2::text,
    result_url    = case when $2::text = 'completed' then nullif($3::text, '') else null end,
    error_message = case when $2::text = 'failed' then nullif($4::text, '') else null end,
    updated_at    = now()
where provider_job_id = $1::text
  and status = 'processing';
`

const QSelectTransformByProviderJob = `--sql 8cf082bb-dad3-4db0-885b-69525c890001
select
  id::text,
  user_id,
  type,
  coalesce(style_id, ''),
  provider_job_id,
  status,
  coalesce(original_image_url, ''),
  coalesce(generated_image_url, ''),
  coalesce(result_url, ''),
  coalesce(error_message, ''),
  coalesce(custom_prompt, ''),
  credits_used,
  created_at,
  updated_at
from transform_history
where provider_job_id = $1::text
limit 1;
`

const QCountTransforms = `--sql d758c2d5-ed57-44fe-b547-5265211bb566
select count(*)
from transform_history
where user_id = $1::text
  and ($2::text = '' or status = $2::text)
  and ($3::text = '' or type = $3::text);
`

const QListTransforms = `--sql c142c440-3e82-49a9-9928-1c333fbb5780
select
  id::text,
  user_id,
  type,
  coalesce(style_id, ''),
  provider_job_id,
  status,
  coalesce(original_image_url, ''),
  coalesce(generated_image_url, ''),
  coalesce(result_url, ''),
  coalesce(error_message, ''),
  coalesce(custom_prompt, ''),
  credits_used,
  created_at,
  updated_at
from transform_history
where user_id = $1::text
  and ($2::text = '' or status = $2::text)
  and ($3::text = '' or type = $3::text)
order by created_at desc
limit $4::int offset $5::int;
`

const QListStaleTransforms = `--sql 23c73053-16a4-4991-9443-46271bd01f21
select
  id::text,
  user_id,
  type,
  coalesce(style_id, ''),
  provider_job_id,
  status,
  coalesce(original_image_url, ''),
  coalesce(generated_image_url, ''),
  coalesce(result_url, ''),
  coalesce(error_message, ''),
  coalesce(custom_prompt, ''),
  credits_used,
  created_at,
  updated_at
from transform_history
where status = 'processing'
  and updated_at < $1::timestamptz
order by updated_at asc
limit $2::int;
`
