package postgres

// Schema is the engine's DDL, applied by cmd/seed and the integration test
// harness. activation_token is nullable: activation clears it, and the
// partial index only covers rows still carrying one.
const Schema = `
CREATE TABLE IF NOT EXISTS contracts (
    id                TEXT PRIMARY KEY,
    user_id           TEXT,
    email             TEXT NOT NULL,
    product_type      TEXT NOT NULL,
    declared_amount   BIGINT NOT NULL DEFAULT 0,
    discount_code     TEXT,
    discount_amount   BIGINT,
    status            TEXT NOT NULL DEFAULT 'payment_pending',
    provider          TEXT NOT NULL DEFAULT '',
    provider_ref      TEXT NOT NULL DEFAULT '',
    provider_tx_id    TEXT NOT NULL DEFAULT '',
    subscription_type TEXT NOT NULL DEFAULT '',
    final_amount      BIGINT,
    period_start      TIMESTAMPTZ,
    period_end        TIMESTAMPTZ,
    guest             BOOLEAN NOT NULL DEFAULT TRUE,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_contracts_provider_ref ON contracts (provider_ref);
CREATE INDEX IF NOT EXISTS idx_contracts_pending ON contracts (created_at) WHERE status = 'payment_pending';

CREATE TABLE IF NOT EXISTS users (
    id                    TEXT PRIMARY KEY,
    email                 TEXT NOT NULL UNIQUE,
    name                  TEXT NOT NULL DEFAULT '',
    phone                 TEXT NOT NULL DEFAULT '',
    is_pending            BOOLEAN NOT NULL DEFAULT TRUE,
    email_verified        BOOLEAN NOT NULL DEFAULT FALSE,
    activation_token      TEXT,
    activation_expires_at TIMESTAMPTZ,
    subscription_name     TEXT NOT NULL DEFAULT '',
    subscription_status   TEXT NOT NULL DEFAULT 'none',
    subscription_start    TIMESTAMPTZ,
    subscription_end      TIMESTAMPTZ,
    next_billing_at       TIMESTAMPTZ,
    last_billing_at       TIMESTAMPTZ,
    last_payment_amount   BIGINT NOT NULL DEFAULT 0,
    total_spent           BIGINT NOT NULL DEFAULT 0,
    lifetime_value        BIGINT NOT NULL DEFAULT 0,
    plan_id               TEXT,
    created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_activation_token ON users (activation_token) WHERE activation_token IS NOT NULL;

CREATE TABLE IF NOT EXISTS plans (
    id            TEXT PRIMARY KEY,
    slug          TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'active',
    price_monthly BIGINT NOT NULL DEFAULT 0,
    price_yearly  BIGINT NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS subscriptions (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    plan_id        TEXT,
    status         TEXT NOT NULL,
    period_start   TIMESTAMPTZ NOT NULL,
    period_end     TIMESTAMPTZ NOT NULL,
    billing_cycle  TEXT NOT NULL,
    price          BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'usd',
    payment_method TEXT NOT NULL DEFAULT '',
    discounts      JSONB,
    auto_renew     BOOLEAN NOT NULL DEFAULT TRUE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_subscriptions_open_per_user
    ON subscriptions (user_id) WHERE status IN ('active','trial','paused');

CREATE TABLE IF NOT EXISTS transactions (
    id             TEXT PRIMARY KEY,
    user_id        TEXT NOT NULL,
    contract_id    TEXT NOT NULL DEFAULT '',
    type           TEXT NOT NULL,
    status         TEXT NOT NULL,
    gross          BIGINT NOT NULL DEFAULT 0,
    fee            BIGINT NOT NULL DEFAULT 0,
    net            BIGINT NOT NULL DEFAULT 0,
    tax            BIGINT NOT NULL DEFAULT 0,
    discount       BIGINT NOT NULL DEFAULT 0,
    currency       TEXT NOT NULL DEFAULT 'usd',
    provider       TEXT NOT NULL DEFAULT '',
    provider_ref   TEXT NOT NULL DEFAULT '',
    payment_method TEXT NOT NULL DEFAULT '',
    meta           JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_provider_ref ON transactions (provider_ref);
`
