package sqlinline

const QInsertLedgerEntry = `--sql 5c58e5a0-0fef-4495-9b6f-c7fab6102048
insert into energy_ledger_entries(id, user_id, amount, source, expires_at, created_at)
values ($1::uuid, $2::text, $3::int, $4::text, $5::timestamptz, $6::timestamptz);
`

const QInsertLotDraws = `--sql 4735b06b-7502-429c-9455-a150efa0a80a
insert into energy_lot_draws(debit_id, lot_id, amount)
select $1::uuid, d.lot_id::uuid, d.amount
from unnest($2::text[], $3::int[]) as d(lot_id, amount);
`

// QListOpenLots returns credit lots that still hold value, expired or not.
const QListOpenLots = `--sql dc25a7d9-7f99-4287-96e3-ba46c39dbbfe
select
  e.id::text,
  e.user_id,
  e.amount,
  e.source,
  e.expires_at,
  e.created_at,
  e.amount - coalesce(sum(d.amount), 0)::int as remaining
from energy_ledger_entries e
left join energy_lot_draws d on d.lot_id = e.id
where e.user_id = $1::text
  and e.amount > 0
group by e.id
having e.amount - coalesce(sum(d.amount), 0) > 0
order by e.expires_at asc, e.created_at asc, e.id asc;
`

const QUsersWithLapsedLots = `--sql 6427ea70-0621-48e2-91fb-fb71854a25ca
select distinct e.user_id
from energy_ledger_entries e
where e.amount > 0
  and e.expires_at <= $1::timestamptz
  and e.amount > coalesce((
    select sum(d.amount) from energy_lot_draws d where d.lot_id = e.id
  ), 0)
order by e.user_id;
`

const QSumLedgerEntries = `--sql 06a09c4c-c55d-4bed-829a-44cecb4307b0
select coalesce(sum(amount), 0)::int
from energy_ledger_entries
where user_id = $1::text;
`
