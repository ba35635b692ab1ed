package sqlinline

const QInsertUser = `--sql 02eaaa9d-ec06-48d5-90b3-e3612bf51703
insert into users(id, energy_balance, is_subscriber, created_at, updated_at)
values ($1::text, 0, $2::bool, $3::timestamptz, $3::timestamptz)
on conflict (id) do nothing
returning id;
`

const QLockUser = `--sql baecf720-67d1-4f35-8d97-d6d5a986e941
select id, energy_balance, is_subscriber, last_checkin, last_share, created_at, updated_at
from users
where id = $1::text
for update;
`

const QUpdateUser = `--sql 935c37b1-b7cc-4009-b41d-5aa556a0595a
update users
set energy_balance = $2::int,
    is_subscriber = $3::bool,
    last_checkin = $4::timestamptz,
    last_share = $5::timestamptz,
    updated_at = $6::timestamptz
where id = $1::text;
`
