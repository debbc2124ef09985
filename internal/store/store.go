// Package store is the embedded relational store: a single SQLite file
// holding Outputs, EnrichedTransactions, the two classification tables,
// and per-stage Checkpoints (spec.md §3, §6).
//
// The driver is modernc.org/sqlite (pure Go, no cgo), keeping the
// "single embedded database file" requirement literal while following
// the teacher's database/sql usage patterns: a shared handle, explicit
// transactions with a deferred rollback, and upsert statements built
// around ON CONFLICT.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"

	"github.com/rawblock/p2ms-forensics/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the database handle. cmd/classifier opens one Store,
// shares it across all three stages, and Closes it with a deferred call.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// SQLite only supports one writer at a time; the pipeline's
	// single-serialized-committer design (spec.md §5) matches this
	// naturally, but cap it explicitly to avoid SQLITE_BUSY under the
	// concurrent readers Stage 3 classification uses.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InitSchema executes the embedded schema and records the current
// version in schema_migrations if not already present.
func (s *Store) InitSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("store: init schema: %w", err)
	}

	const version = 1
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists)
	if err != nil {
		return fmt.Errorf("store: check schema version: %w", err)
	}
	if exists == 0 {
		if _, err := s.db.Exec(`INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))`, version); err != nil {
			return fmt.Errorf("store: record schema version: %w", err)
		}
		log.Printf("[Store] Schema initialized at version %d", version)
	}
	return nil
}

// InsertOutput persists a Stage 1 output row. Idempotent on (txid,
// vout): a rerun over already-seen CSV rows does not re-insert.
func (s *Store) InsertOutput(ctx context.Context, out models.Output) error {
	var reqSigs, totalPk sql.NullInt64
	var pubkeysJSON sql.NullString
	if out.Multisig != nil {
		reqSigs = sql.NullInt64{Int64: int64(out.Multisig.RequiredSigs), Valid: true}
		totalPk = sql.NullInt64{Int64: int64(out.Multisig.TotalPubkeys), Valid: true}
		b, err := json.Marshal(out.Multisig.Pubkeys)
		if err != nil {
			return fmt.Errorf("store: marshal pubkeys: %w", err)
		}
		pubkeysJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO outputs
			(txid, vout, height, amount, script_type, raw_script, is_coinbase, is_spent, required_sigs, total_pubkeys, pubkeys_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`, out.Txid, out.Vout, out.Height, out.Amount, string(out.ScriptType), out.RawScript,
		boolToInt(out.IsCoinbase), reqSigs, totalPk, pubkeysJSON)
	if err != nil {
		return fmt.Errorf("store: insert output %s:%d: %w", out.Txid, out.Vout, err)
	}
	return nil
}

// GetP2MSOutputs returns every multisig output belonging to txid, in
// vout order.
func (s *Store) GetP2MSOutputs(ctx context.Context, txid string) ([]models.Output, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txid, vout, height, amount, script_type, raw_script, is_coinbase, is_spent, required_sigs, total_pubkeys, pubkeys_json
		FROM outputs WHERE txid = ? AND script_type = 'multisig' ORDER BY vout
	`, txid)
	if err != nil {
		return nil, fmt.Errorf("store: query p2ms outputs: %w", err)
	}
	defer rows.Close()

	var out []models.Output
	for rows.Next() {
		o, err := scanOutput(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOutput(rows scannable) (models.Output, error) {
	var o models.Output
	var scriptType string
	var isCoinbase, isSpent int
	var reqSigs, totalPk sql.NullInt64
	var pubkeysJSON sql.NullString
	if err := rows.Scan(&o.Txid, &o.Vout, &o.Height, &o.Amount, &scriptType, &o.RawScript,
		&isCoinbase, &isSpent, &reqSigs, &totalPk, &pubkeysJSON); err != nil {
		return o, fmt.Errorf("store: scan output: %w", err)
	}
	o.ScriptType = models.ScriptType(scriptType)
	o.IsCoinbase = isCoinbase != 0
	o.IsSpent = isSpent != 0
	if reqSigs.Valid {
		meta := &models.MultisigMeta{
			RequiredSigs: int(reqSigs.Int64),
			TotalPubkeys: int(totalPk.Int64),
		}
		if pubkeysJSON.Valid {
			if err := json.Unmarshal([]byte(pubkeysJSON.String), &meta.Pubkeys); err != nil {
				return o, fmt.Errorf("store: unmarshal pubkeys: %w", err)
			}
		}
		o.Multisig = meta
	}
	return o, nil
}

// ListUnenrichedP2MSTxids returns up to limit distinct txids that own
// at least one multisig output and have no EnrichedTransaction row yet,
// ordered for stable resumption.
func (s *Store) ListUnenrichedP2MSTxids(ctx context.Context, afterTxid string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT o.txid FROM outputs o
		LEFT JOIN enriched_transactions e ON e.txid = o.txid
		WHERE o.script_type = 'multisig' AND e.txid IS NULL AND o.txid > ?
		ORDER BY o.txid
		LIMIT ?
	`, afterTxid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list unenriched txids: %w", err)
	}
	defer rows.Close()

	var txids []string
	for rows.Next() {
		var txid string
		if err := rows.Scan(&txid); err != nil {
			return nil, err
		}
		txids = append(txids, txid)
	}
	return txids, rows.Err()
}

// UpsertEnrichedTransaction persists a Stage 2 row and its side tables.
// It never touches outputs.is_spent (spec.md §8 invariant 3).
func (s *Store) UpsertEnrichedTransaction(ctx context.Context, tx models.EnrichedTransaction) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin enrich tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO enriched_transactions
			(txid, height, input_count, output_count, total_input_value, total_output_value, transaction_fee, fee_per_byte, transaction_size, first_input_txid, first_input_address)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid) DO UPDATE SET
			height = excluded.height,
			input_count = excluded.input_count,
			output_count = excluded.output_count,
			total_input_value = excluded.total_input_value,
			total_output_value = excluded.total_output_value,
			transaction_fee = excluded.transaction_fee,
			fee_per_byte = excluded.fee_per_byte,
			transaction_size = excluded.transaction_size,
			first_input_txid = excluded.first_input_txid,
			first_input_address = excluded.first_input_address
	`, tx.Txid, tx.Height, tx.InputCount, tx.OutputCount, tx.TotalInputValue, tx.TotalOutputValue,
		tx.TransactionFee, tx.FeePerByte, tx.TransactionSize, tx.FirstInputTxid, tx.FirstInputAddress)
	if err != nil {
		return fmt.Errorf("store: upsert enriched transaction %s: %w", tx.Txid, err)
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM burn_key_detections WHERE txid = ?`, tx.Txid); err != nil {
		return err
	}
	for _, bk := range tx.BurnKeyDetections {
		if _, err := dbtx.ExecContext(ctx, `INSERT INTO burn_key_detections (txid, vout, slot, pattern) VALUES (?, ?, ?, ?)`,
			tx.Txid, bk.Vout, bk.Slot, bk.Pattern); err != nil {
			return fmt.Errorf("store: insert burn key detection: %w", err)
		}
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM exodus_outputs WHERE txid = ?`, tx.Txid); err != nil {
		return err
	}
	for _, ao := range tx.ExodusOutputs {
		if _, err := dbtx.ExecContext(ctx, `INSERT INTO exodus_outputs (txid, vout, address) VALUES (?, ?, ?)`,
			tx.Txid, ao.Vout, ao.Address); err != nil {
			return fmt.Errorf("store: insert exodus output: %w", err)
		}
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM wikileaks_outputs WHERE txid = ?`, tx.Txid); err != nil {
		return err
	}
	for _, ao := range tx.WikiLeaksOutputs {
		if _, err := dbtx.ExecContext(ctx, `INSERT INTO wikileaks_outputs (txid, vout, address) VALUES (?, ?, ?)`,
			tx.Txid, ao.Vout, ao.Address); err != nil {
			return fmt.Errorf("store: insert wikileaks output: %w", err)
		}
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM op_return_outputs WHERE txid = ?`, tx.Txid); err != nil {
		return err
	}
	for _, or := range tx.OpReturnOutputs {
		if _, err := dbtx.ExecContext(ctx, `INSERT INTO op_return_outputs (txid, vout, payload) VALUES (?, ?, ?)`,
			tx.Txid, or.Vout, or.Payload); err != nil {
			return fmt.Errorf("store: insert op_return output: %w", err)
		}
	}

	return dbtx.Commit()
}

// GetEnrichedTransaction loads one EnrichedTransaction with its side tables.
func (s *Store) GetEnrichedTransaction(ctx context.Context, txid string) (*models.EnrichedTransaction, error) {
	var tx models.EnrichedTransaction
	tx.Txid = txid
	err := s.db.QueryRowContext(ctx, `
		SELECT height, input_count, output_count, total_input_value, total_output_value, transaction_fee, fee_per_byte, transaction_size, first_input_txid, first_input_address
		FROM enriched_transactions WHERE txid = ?
	`, txid).Scan(&tx.Height, &tx.InputCount, &tx.OutputCount, &tx.TotalInputValue, &tx.TotalOutputValue,
		&tx.TransactionFee, &tx.FeePerByte, &tx.TransactionSize, &tx.FirstInputTxid, &tx.FirstInputAddress)
	if err != nil {
		return nil, fmt.Errorf("store: get enriched transaction %s: %w", txid, err)
	}

	bkRows, err := s.db.QueryContext(ctx, `SELECT vout, slot, pattern FROM burn_key_detections WHERE txid = ?`, txid)
	if err != nil {
		return nil, err
	}
	defer bkRows.Close()
	for bkRows.Next() {
		var bk models.BurnKeyDetection
		if err := bkRows.Scan(&bk.Vout, &bk.Slot, &bk.Pattern); err != nil {
			return nil, err
		}
		tx.BurnKeyDetections = append(tx.BurnKeyDetections, bk)
	}

	tx.ExodusOutputs, err = s.scanAddressOutputs(ctx, "exodus_outputs", txid)
	if err != nil {
		return nil, err
	}
	tx.WikiLeaksOutputs, err = s.scanAddressOutputs(ctx, "wikileaks_outputs", txid)
	if err != nil {
		return nil, err
	}

	orRows, err := s.db.QueryContext(ctx, `SELECT vout, payload FROM op_return_outputs WHERE txid = ?`, txid)
	if err != nil {
		return nil, err
	}
	defer orRows.Close()
	for orRows.Next() {
		var or models.OpReturnOutput
		if err := orRows.Scan(&or.Vout, &or.Payload); err != nil {
			return nil, err
		}
		tx.OpReturnOutputs = append(tx.OpReturnOutputs, or)
	}

	return &tx, nil
}

func (s *Store) scanAddressOutputs(ctx context.Context, table, txid string) ([]models.AddressOutput, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT vout, address FROM %s WHERE txid = ?`, table), txid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AddressOutput
	for rows.Next() {
		var ao models.AddressOutput
		if err := rows.Scan(&ao.Vout, &ao.Address); err != nil {
			return nil, err
		}
		out = append(out, ao)
	}
	return out, rows.Err()
}

// ListEnrichedTxidsForClassification returns up to limit enriched
// txids after afterTxid, for Stage 3's resumable iteration.
func (s *Store) ListEnrichedTxidsForClassification(ctx context.Context, afterTxid string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT txid FROM enriched_transactions WHERE txid > ? ORDER BY txid LIMIT ?
	`, afterTxid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list enriched txids: %w", err)
	}
	defer rows.Close()
	var txids []string
	for rows.Next() {
		var txid string
		if err := rows.Scan(&txid); err != nil {
			return nil, err
		}
		txids = append(txids, txid)
	}
	return txids, rows.Err()
}

// ProtocolCounts returns the number of classified transactions per
// protocol, for the status API's GET /stats.
func (s *Store) ProtocolCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT protocol, COUNT(*) FROM transaction_classifications GROUP BY protocol
	`)
	if err != nil {
		return nil, fmt.Errorf("store: protocol counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var protocol string
		var n int
		if err := rows.Scan(&protocol, &n); err != nil {
			return nil, err
		}
		counts[protocol] = n
	}
	return counts, rows.Err()
}

// InsertClassification persists a TransactionClassification and all its
// P2MSOutputClassification children in one transaction, parent first,
// satisfying the FK ordering invariant (spec.md §3, §4.7). Idempotent:
// a rerun of the same batch replaces prior rows for the same txid.
func (s *Store) InsertClassification(ctx context.Context, txClass models.TransactionClassification, outputs []models.P2MSOutputClassification) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin classification tx: %w", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	var metaJSON sql.NullString
	if len(txClass.AdditionalMetadata) > 0 {
		b, err := json.Marshal(txClass.AdditionalMetadata)
		if err != nil {
			return fmt.Errorf("store: marshal additional metadata: %w", err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err = dbtx.ExecContext(ctx, `
		INSERT INTO transaction_classifications
			(txid, protocol, variant, content_type, transport_protocol, protocol_signature_found, additional_metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(txid) DO UPDATE SET
			protocol = excluded.protocol,
			variant = excluded.variant,
			content_type = excluded.content_type,
			transport_protocol = excluded.transport_protocol,
			protocol_signature_found = excluded.protocol_signature_found,
			additional_metadata_json = excluded.additional_metadata_json
	`, txClass.Txid, string(txClass.Protocol), nullableString(txClass.Variant), nullableString(txClass.ContentType),
		nullableString(string(txClass.TransportProtocol)), boolToInt(txClass.ProtocolSignatureFound), metaJSON)
	if err != nil {
		return fmt.Errorf("store: insert transaction classification %s: %w", txClass.Txid, err)
	}

	if _, err := dbtx.ExecContext(ctx, `DELETE FROM p2ms_output_classifications WHERE txid = ?`, txClass.Txid); err != nil {
		return err
	}
	for _, o := range outputs {
		var spendable sql.NullBool
		if o.IsSpendable != nil {
			spendable = sql.NullBool{Bool: *o.IsSpendable, Valid: true}
		}
		_, err = dbtx.ExecContext(ctx, `
			INSERT INTO p2ms_output_classifications
				(txid, vout, protocol, variant, content_type, is_spendable, spendability_reason, real_pubkey_count, burn_key_count, data_key_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, o.Txid, o.Vout, string(o.Protocol), nullableString(o.Variant), nullableString(o.ContentType),
			spendable, string(o.SpendabilityTag), o.RealPubkeyCount, o.BurnKeyCount, o.DataKeyCount)
		if err != nil {
			return fmt.Errorf("store: insert p2ms output classification %s:%d: %w", o.Txid, o.Vout, err)
		}
	}

	return dbtx.Commit()
}

// SaveCheckpoint persists the resume point for stage.
func (s *Store) SaveCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (stage, byte_offset, lines_read, last_txid, batch_index)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(stage) DO UPDATE SET
			byte_offset = excluded.byte_offset,
			lines_read = excluded.lines_read,
			last_txid = excluded.last_txid,
			batch_index = excluded.batch_index
	`, string(cp.Stage), cp.ByteOffset, cp.LinesRead, cp.LastTxid, cp.BatchIndex)
	if err != nil {
		return fmt.Errorf("store: save checkpoint %s: %w", cp.Stage, err)
	}
	return nil
}

// LoadCheckpoint returns the last saved checkpoint for stage, or the
// zero value if none exists yet.
func (s *Store) LoadCheckpoint(ctx context.Context, stage models.Stage) (models.Checkpoint, error) {
	cp := models.Checkpoint{Stage: stage}
	err := s.db.QueryRowContext(ctx, `
		SELECT byte_offset, lines_read, last_txid, batch_index FROM checkpoints WHERE stage = ?
	`, string(stage)).Scan(&cp.ByteOffset, &cp.LinesRead, &cp.LastTxid, &cp.BatchIndex)
	if err == sql.ErrNoRows {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("store: load checkpoint %s: %w", stage, err)
	}
	return cp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
