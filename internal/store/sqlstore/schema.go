package sqlstore

// Amounts are stored as BIGINT minor units at the ledger scale recorded in
// ledger_meta, so SUM is exact on every backend.

const postgresSchema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
    key   VARCHAR(64) PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS account (
    code         VARCHAR(32) PRIMARY KEY,
    name         TEXT NOT NULL,
    account_type VARCHAR(16) NOT NULL
        CHECK (account_type IN ('asset', 'liability', 'equity', 'revenue', 'expense')),
    parent_code  VARCHAR(32) REFERENCES account(code) DEFERRABLE INITIALLY DEFERRED,
    detail       BOOLEAN NOT NULL DEFAULT TRUE,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sub_account (
    account_code VARCHAR(32) NOT NULL REFERENCES account(code),
    code         VARCHAR(32) NOT NULL,
    name         TEXT NOT NULL,
    active       BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (account_code, code)
);

CREATE TABLE IF NOT EXISTS reference_code (
    kind   VARCHAR(16) NOT NULL,
    code   VARCHAR(32) NOT NULL,
    name   TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    PRIMARY KEY (kind, code)
);

CREATE TABLE IF NOT EXISTS journal_header (
    journal_number VARCHAR(15) PRIMARY KEY,
    posting_date   DATE NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    total_minor    BIGINT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_header_date ON journal_header (posting_date);

CREATE TABLE IF NOT EXISTS journal_detail (
    journal_number   VARCHAR(15) NOT NULL REFERENCES journal_header(journal_number) ON DELETE CASCADE,
    line_no          INTEGER NOT NULL,
    side             CHAR(1) NOT NULL CHECK (side IN ('D', 'C')),
    account_code     VARCHAR(32) NOT NULL REFERENCES account(code),
    sub_account_code VARCHAR(32) NOT NULL DEFAULT '',
    partner_code     VARCHAR(32) NOT NULL DEFAULT '',
    analysis_code    VARCHAR(32) NOT NULL DEFAULT '',
    tax_code         VARCHAR(32) NOT NULL DEFAULT '',
    base_minor       BIGINT NOT NULL CHECK (base_minor >= 0),
    tax_minor        BIGINT NOT NULL CHECK (tax_minor >= 0),
    total_minor      BIGINT NOT NULL CHECK (total_minor = base_minor + tax_minor),
    description      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (journal_number, line_no)
);

CREATE INDEX IF NOT EXISTS idx_journal_detail_account ON journal_detail (account_code, sub_account_code);

CREATE TABLE IF NOT EXISTS journal_sequence (
    seq_date   CHAR(8) PRIMARY KEY,
    last_value BIGINT NOT NULL
);
`

// posting_date is TEXT ('YYYY-MM-DD') in SQLite so the driver never converts
// it to time.Time; lexical order equals date order.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS account (
    code         TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    account_type TEXT NOT NULL
        CHECK (account_type IN ('asset', 'liability', 'equity', 'revenue', 'expense')),
    parent_code  TEXT REFERENCES account(code) DEFERRABLE INITIALLY DEFERRED,
    detail       BOOLEAN NOT NULL DEFAULT 1,
    active       BOOLEAN NOT NULL DEFAULT 1,
    sort_order   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sub_account (
    account_code TEXT NOT NULL REFERENCES account(code),
    code         TEXT NOT NULL,
    name         TEXT NOT NULL,
    active       BOOLEAN NOT NULL DEFAULT 1,
    PRIMARY KEY (account_code, code)
);

CREATE TABLE IF NOT EXISTS reference_code (
    kind   TEXT NOT NULL,
    code   TEXT NOT NULL,
    name   TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT 1,
    PRIMARY KEY (kind, code)
);

CREATE TABLE IF NOT EXISTS journal_header (
    journal_number TEXT PRIMARY KEY,
    posting_date   TEXT NOT NULL,
    description    TEXT NOT NULL DEFAULT '',
    total_minor    INTEGER NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    updated_at     TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_header_date ON journal_header (posting_date);

CREATE TABLE IF NOT EXISTS journal_detail (
    journal_number   TEXT NOT NULL REFERENCES journal_header(journal_number) ON DELETE CASCADE,
    line_no          INTEGER NOT NULL,
    side             TEXT NOT NULL CHECK (side IN ('D', 'C')),
    account_code     TEXT NOT NULL REFERENCES account(code),
    sub_account_code TEXT NOT NULL DEFAULT '',
    partner_code     TEXT NOT NULL DEFAULT '',
    analysis_code    TEXT NOT NULL DEFAULT '',
    tax_code         TEXT NOT NULL DEFAULT '',
    base_minor       INTEGER NOT NULL CHECK (base_minor >= 0),
    tax_minor        INTEGER NOT NULL CHECK (tax_minor >= 0),
    total_minor      INTEGER NOT NULL CHECK (total_minor = base_minor + tax_minor),
    description      TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (journal_number, line_no)
);

CREATE INDEX IF NOT EXISTS idx_journal_detail_account ON journal_detail (account_code, sub_account_code);

CREATE TABLE IF NOT EXISTS journal_sequence (
    seq_date   TEXT PRIMARY KEY,
    last_value INTEGER NOT NULL
);
`
