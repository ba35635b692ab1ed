package sqlinline

const QInsertHistory = `--sql 36d2e577-11a7-416a-8fcc-da172feca24e
insert into energy_history(id, user_id, type, amount, description, metadata, created_at)
values ($1::uuid, $2::text, $3::text, $4::int, $5::text, coalesce($6::jsonb, '{}'::jsonb), $7::timestamptz);
`

const QListHistory = `--sql 3d3eb88f-c3f6-4d31-bd72-fc92b82c783b
select id::text, user_id, type, amount, description, metadata, created_at
from energy_history
where user_id = $1::text
order by created_at desc, id desc
limit $2::int;
`
