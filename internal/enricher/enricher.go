// Package enricher implements Stage 2: per-transaction retrieval over
// the Node Client, computing fee/size/aggregate metadata, detecting
// burn keys and marker addresses, and caching the first input's txid
// for later ARC4 keying (spec.md §4.6).
package enricher

import (
	"context"
	"fmt"
	"log"

	"github.com/rawblock/p2ms-forensics/internal/bitcoin"
	"github.com/rawblock/p2ms-forensics/internal/burnkey"
	"github.com/rawblock/p2ms-forensics/internal/script"
	"github.com/rawblock/p2ms-forensics/internal/statusapi"
	"github.com/rawblock/p2ms-forensics/internal/store"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

const (
	exodusAddress    = "1EXoDusjGwvnjZUyKkxZ4UHEf77z6A5S4P"
	wikileaksAddress = "1HB5XMLmzFVj8ALj6mfBsbifRoD4miY36v"

	opReturn = 0x6a
)

// opReturnPayload strips the OP_RETURN opcode and its length-push
// prefix, returning the raw pushed data. Tolerates both direct-push
// (0x01-0x4b) and OP_PUSHDATA1 encodings; anything else is returned
// with only the opcode stripped.
func opReturnPayload(raw []byte) []byte {
	if len(raw) < 2 {
		return nil
	}
	rest := raw[1:]
	switch {
	case rest[0] >= 0x01 && rest[0] <= 0x4b:
		n := int(rest[0])
		if 1+n <= len(rest) {
			return append([]byte(nil), rest[1:1+n]...)
		}
	case rest[0] == 0x4c && len(rest) >= 2: // OP_PUSHDATA1
		n := int(rest[1])
		if 2+n <= len(rest) {
			return append([]byte(nil), rest[2:2+n]...)
		}
	}
	return append([]byte(nil), rest...)
}

// Enricher drives Stage 2.
type Enricher struct {
	store    *store.Store
	node     *bitcoin.Client
	reporter *statusapi.Reporter // optional; nil disables progress reporting
}

func New(s *store.Store, node *bitcoin.Client, reporter *statusapi.Reporter) *Enricher {
	return &Enricher{store: s, node: node, reporter: reporter}
}

// Run enriches every P2MS-bearing txid lacking an EnrichedTransaction
// row, in batches of batchSize, checkpointing after each batch
// (spec.md §4.6, §5).
func (e *Enricher) Run(ctx context.Context, batchSize int) error {
	cp, err := e.store.LoadCheckpoint(ctx, models.StageEnricher)
	if err != nil {
		return fmt.Errorf("enricher: load checkpoint: %w", err)
	}
	after := cp.LastTxid
	batchIndex := cp.BatchIndex

	total := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("[Enricher] shutdown requested, flushed through %s", after)
			return nil
		default:
		}

		txids, err := e.store.ListUnenrichedP2MSTxids(ctx, after, batchSize)
		if err != nil {
			return fmt.Errorf("enricher: list unenriched: %w", err)
		}
		if len(txids) == 0 {
			break
		}

		details, failures := e.node.GetTransactions(ctx, txids)
		for txid, err := range failures {
			log.Printf("[Enricher] failed to fetch %s, skipping this run: %v", txid, err)
		}

		for _, txid := range txids {
			detail, ok := details[txid]
			if !ok {
				continue
			}
			enriched, err := e.buildEnriched(ctx, detail)
			if err != nil {
				log.Printf("[Enricher] failed to enrich %s, skipping: %v", txid, err)
				continue
			}
			if err := e.store.UpsertEnrichedTransaction(ctx, *enriched); err != nil {
				return fmt.Errorf("enricher: persist %s: %w", txid, err)
			}
			total++
		}

		after = txids[len(txids)-1]
		batchIndex++
		if err := e.store.SaveCheckpoint(ctx, models.Checkpoint{
			Stage: models.StageEnricher, LastTxid: after, BatchIndex: batchIndex,
		}); err != nil {
			return fmt.Errorf("enricher: save checkpoint: %w", err)
		}
		log.Printf("[Enricher] batch %d: enriched %d transactions (total %d)", batchIndex, len(txids), total)
		if e.reporter != nil {
			e.reporter.Report("enricher", int(batchIndex), total)
		}
	}

	log.Printf("[Enricher] complete: %d transactions enriched", total)
	return nil
}

// buildEnriched computes the aggregates, resolves input values via the
// Node Client, determines the first input's txid (the ARC4 key
// material for Stage 3), and scans for burn keys and marker addresses.
func (e *Enricher) buildEnriched(ctx context.Context, detail *models.TxDetail) (*models.EnrichedTransaction, error) {
	enriched := &models.EnrichedTransaction{
		Txid:            detail.Txid,
		Height:          detail.Height,
		InputCount:      len(detail.Inputs),
		OutputCount:     len(detail.Outputs),
		TransactionSize: detail.Size,
	}

	var totalIn int64
	if len(detail.Inputs) > 0 {
		enriched.FirstInputTxid = detail.Inputs[0].Txid
	}
	for i, in := range detail.Inputs {
		prevTx, err := e.node.GetTransaction(ctx, in.Txid)
		if err != nil {
			// A single unresolved input value degrades fee accuracy but
			// must not abort enrichment (spec.md §7: permanent node
			// errors are skipped, not fatal).
			log.Printf("[Enricher] could not resolve input %d value for %s: %v", i, detail.Txid, err)
			continue
		}
		for _, out := range prevTx.Outputs {
			if out.Vout == in.Vout {
				totalIn += out.Value
				if i == 0 {
					enriched.FirstInputAddress = out.Address
				}
				break
			}
		}
	}
	enriched.TotalInputValue = totalIn

	var totalOut int64
	for _, out := range detail.Outputs {
		totalOut += out.Value
	}
	enriched.TotalOutputValue = totalOut

	// Coinbase inputs have no real prevouts, so totalIn is whatever
	// buildEnriched resolved above (typically 0); the fee comes out
	// negative/zero rather than being a meaningful network fee
	// (spec.md §3).
	enriched.TransactionFee = totalIn - totalOut
	if detail.Size > 0 {
		enriched.FeePerByte = float64(enriched.TransactionFee) / float64(detail.Size)
	}

	for _, out := range detail.Outputs {
		switch out.Address {
		case exodusAddress:
			enriched.ExodusOutputs = append(enriched.ExodusOutputs, models.AddressOutput{Vout: out.Vout, Address: out.Address})
		case wikileaksAddress:
			enriched.WikiLeaksOutputs = append(enriched.WikiLeaksOutputs, models.AddressOutput{Vout: out.Vout, Address: out.Address})
		}

		if len(out.ScriptPubKey) >= 1 && out.ScriptPubKey[0] == opReturn {
			enriched.OpReturnOutputs = append(enriched.OpReturnOutputs, models.OpReturnOutput{
				Vout: out.Vout, Payload: opReturnPayload(out.ScriptPubKey),
			})
		}

		meta, err := script.Parse(out.ScriptPubKey)
		if err != nil {
			continue // not P2MS; burn-key scanning only applies to multisig outputs
		}
		for _, pk := range meta.Pubkeys {
			if pattern, ok := burnkey.Detect(pk.Bytes); ok {
				enriched.BurnKeyDetections = append(enriched.BurnKeyDetections, models.BurnKeyDetection{
					Vout: out.Vout, Slot: pk.Index, Pattern: pattern,
				})
			}
		}
	}

	return enriched, nil
}
