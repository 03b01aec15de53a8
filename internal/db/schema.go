package db

// SchemaSQL defines the key-value mirror table.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS kv SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS value ON kv TYPE string;
    DEFINE FIELD IF NOT EXISTS created ON kv TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS updated ON kv TYPE datetime DEFAULT time::now();
`
