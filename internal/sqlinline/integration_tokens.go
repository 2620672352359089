package sqlinline

// Provider API keys managed by cmd/providerkey. Blank tokens read as absent.

const QSelectIntegrationToken = `--sql 6a32df23-11cf-4ce6-855f-2155be4fb9e4
SELECT token
FROM integration_tokens
WHERE provider = $1::text
  AND btrim(token) <> ''
`

const QUpsertIntegrationToken = `--sql 606e758f-0d8f-455b-9298-0308cc68e007
INSERT INTO integration_tokens (provider, token, properties)
VALUES ($1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb))
ON CONFLICT (provider) DO UPDATE
SET token      = excluded.token,
    properties = integration_tokens.properties || excluded.properties,
    updated_at = now()
`

const QDeleteIntegrationToken = `--sql 71db79bf-cba8-433a-a732-30f18a46dd69
DELETE FROM integration_tokens
WHERE provider = $1::text
`
