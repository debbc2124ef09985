// Package extractor implements Stage 1: a streaming scan of the UTXO
// CSV dump, selecting P2MS outputs and persisting them with resumable
// byte-offset checkpoints (spec.md §4.5).
package extractor

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/rawblock/p2ms-forensics/internal/script"
	"github.com/rawblock/p2ms-forensics/internal/statusapi"
	"github.com/rawblock/p2ms-forensics/internal/store"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// Extractor drives Stage 1.
type Extractor struct {
	store    *store.Store
	reporter *statusapi.Reporter // optional; nil disables progress reporting
}

func New(s *store.Store, reporter *statusapi.Reporter) *Extractor {
	return &Extractor{store: s, reporter: reporter}
}

// countingReader tracks the raw bytes read from the file, including
// bytes the buffered CSV reader has read ahead of its current record.
type countingReader struct {
	r     io.Reader
	count int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.count += int64(n)
	return n, err
}

// Run streams csvPath starting at the last checkpoint, persisting
// every P2MS row and committing a checkpoint every batchSize rows.
func (e *Extractor) Run(ctx context.Context, csvPath string, batchSize int) error {
	cp, err := e.store.LoadCheckpoint(ctx, models.StageExtractor)
	if err != nil {
		return fmt.Errorf("extractor: load checkpoint: %w", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("extractor: open %s: %w", csvPath, err)
	}
	defer f.Close()

	if cp.ByteOffset > 0 {
		if _, err := f.Seek(cp.ByteOffset, io.SeekStart); err != nil {
			return fmt.Errorf("extractor: resume seek: %w", err)
		}
		log.Printf("[Extractor] resuming from byte offset %d (%d lines already processed)", cp.ByteOffset, cp.LinesRead)
	}

	counter := &countingReader{r: f}
	reader := csv.NewReader(bufio.NewReader(counter))
	reader.FieldsPerRecord = -1 // tolerate extra columns (spec.md §6)
	reader.TrimLeadingSpace = true

	if cp.ByteOffset == 0 {
		if _, err := reader.Read(); err != nil && err != io.EOF {
			return fmt.Errorf("extractor: read header: %w", err)
		}
	}

	linesRead := cp.LinesRead
	byteOffset := cp.ByteOffset
	inBatch := 0
	accepted, rejected := 0, 0

	for {
		select {
		case <-ctx.Done():
			return e.checkpoint(ctx, byteOffset, linesRead, cp.BatchIndex)
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rejected++
			log.Printf("[Extractor] skipping malformed row near line %d: %v", linesRead+1, err)
			linesRead++
			continue
		}

		linesRead++
		if out, ok := parseRow(record); ok {
			if err := e.store.InsertOutput(ctx, out); err != nil {
				return fmt.Errorf("extractor: insert output: %w", err)
			}
			accepted++
		} else {
			rejected++
		}

		inBatch++
		if inBatch >= batchSize {
			byteOffset = cp.ByteOffset + reader.InputOffset()
			cp.BatchIndex++
			if err := e.checkpoint(ctx, byteOffset, linesRead, cp.BatchIndex); err != nil {
				return err
			}
			log.Printf("[Extractor] batch %d: %d rows processed so far (%d accepted, %d rejected)", cp.BatchIndex, linesRead, accepted, rejected)
			if e.reporter != nil {
				e.reporter.Report("extractor", int(cp.BatchIndex), accepted)
			}
			inBatch = 0
		}
	}

	byteOffset = cp.ByteOffset + reader.InputOffset()
	cp.BatchIndex++
	if err := e.checkpoint(ctx, byteOffset, linesRead, cp.BatchIndex); err != nil {
		return err
	}

	log.Printf("[Extractor] complete: %d rows processed, %d accepted, %d rejected", linesRead, accepted, rejected)
	if e.reporter != nil {
		e.reporter.Report("extractor", int(cp.BatchIndex), accepted)
	}
	return nil
}

func (e *Extractor) checkpoint(ctx context.Context, byteOffset, linesRead, batchIndex int64) error {
	return e.store.SaveCheckpoint(ctx, models.Checkpoint{
		Stage:      models.StageExtractor,
		ByteOffset: byteOffset,
		LinesRead:  linesRead,
		BatchIndex: batchIndex,
	})
}

// parseRow maps one CSV record to an Output, invoking the Script
// Parser on the script_hex column. Non-P2MS rows are still persisted
// (script_type nonstandard/other) so the extracted set is a complete
// UTXO sample, not just multisig rows (spec.md §3 allows this).
//
// Columns (spec.md §6): height, txid, vout, amount, script_type,
// script_hex, is_coinbase, ... (extra trailing columns tolerated).
func parseRow(record []string) (models.Output, bool) {
	if len(record) < 7 {
		return models.Output{}, false
	}

	height, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return models.Output{}, false
	}
	txid := strings.TrimSpace(record[1])
	vout64, err := strconv.ParseUint(strings.TrimSpace(record[2]), 10, 32)
	if err != nil {
		return models.Output{}, false
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(record[3]), 10, 64)
	if err != nil || amount < 0 {
		return models.Output{}, false
	}
	declaredType := strings.TrimSpace(record[4])
	scriptHex := strings.TrimSpace(record[5])
	rawScript, err := hex.DecodeString(scriptHex)
	if err != nil {
		return models.Output{}, false
	}
	isCoinbase := strings.TrimSpace(record[6]) == "1" || strings.EqualFold(strings.TrimSpace(record[6]), "true")

	out := models.Output{
		Txid:       txid,
		Vout:       uint32(vout64),
		Height:     height,
		Amount:     amount,
		RawScript:  rawScript,
		IsCoinbase: isCoinbase,
	}

	if strings.EqualFold(declaredType, "multisig") {
		if meta, err := script.Parse(rawScript); err == nil {
			out.ScriptType = models.ScriptTypeMultisig
			out.Multisig = meta
			return out, true
		}
	}
	out.ScriptType = models.ScriptTypeNonstandard
	return out, true
}
