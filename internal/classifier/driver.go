package classifier

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/p2ms-forensics/internal/artifact"
	"github.com/rawblock/p2ms-forensics/internal/decode"
	"github.com/rawblock/p2ms-forensics/internal/statusapi"
	"github.com/rawblock/p2ms-forensics/internal/store"
	"github.com/rawblock/p2ms-forensics/pkg/models"
)

// Driver runs Stage 3 over every enriched transaction: classification
// is pure given its input, so transactions within a batch classify in
// parallel, but every result funnels through one serialized committer
// (spec.md §5, §9 "Concurrency in Stage 3").
type Driver struct {
	store    *store.Store
	cascade  []Detector
	writer   *artifact.Writer // nil when WRITE_ARTIFACTS is unset
	reporter *statusapi.Reporter
}

// NewDriver builds the Stage 3 driver. writer is the optional decoded
// artifact collaborator (spec.md §6); pass nil to disable it. reporter
// is the optional status API progress sink; pass nil to run without
// one.
func NewDriver(s *store.Store, counterpartyTier2, stampsRequireDecodedSignature bool, writer *artifact.Writer, reporter *statusapi.Reporter) *Driver {
	return &Driver{
		store:    s,
		cascade:  BuildCascade(counterpartyTier2, stampsRequireDecodedSignature),
		writer:   writer,
		reporter: reporter,
	}
}

type classifyResult struct {
	txid    string
	txClass models.TransactionClassification
	outputs []models.P2MSOutputClassification
	payload []byte // decoded payload for the artifact writer, may be nil
	err     error
}

// Run classifies every enriched transaction in batches of batchSize,
// checkpointing after each batch (spec.md §4.7).
func (d *Driver) Run(ctx context.Context, batchSize int) error {
	cp, err := d.store.LoadCheckpoint(ctx, models.StageClassifier)
	if err != nil {
		return fmt.Errorf("classifier: load checkpoint: %w", err)
	}
	after := cp.LastTxid
	batchIndex := cp.BatchIndex
	total := 0

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Classifier] shutdown requested, flushed through %s", after)
			return nil
		default:
		}

		txids, err := d.store.ListEnrichedTxidsForClassification(ctx, after, batchSize)
		if err != nil {
			return fmt.Errorf("classifier: list txids: %w", err)
		}
		if len(txids) == 0 {
			break
		}

		results, err := d.classifyBatch(ctx, txids)
		if err != nil {
			return fmt.Errorf("classifier: classify batch: %w", err)
		}
		for _, r := range results {
			if r.err != nil {
				log.Printf("[Classifier] skipping %s: %v", r.txid, r.err)
				continue
			}
			if err := d.store.InsertClassification(ctx, r.txClass, r.outputs); err != nil {
				return fmt.Errorf("classifier: persist %s: %w", r.txid, err)
			}
			total++
			d.writeArtifact(r)
		}

		after = txids[len(txids)-1]
		batchIndex++
		if err := d.store.SaveCheckpoint(ctx, models.Checkpoint{
			Stage: models.StageClassifier, LastTxid: after, BatchIndex: batchIndex,
		}); err != nil {
			return fmt.Errorf("classifier: save checkpoint: %w", err)
		}
		log.Printf("[Classifier] batch %d: classified %d transactions (total %d)", batchIndex, len(txids), total)
		if d.reporter != nil {
			d.reporter.Report("classifier", int(batchIndex), total)
		}
	}

	log.Printf("[Classifier] complete: %d transactions classified", total)
	return nil
}

// classifyBatch runs the cascade for every txid concurrently and
// returns results in the same order as txids; the caller serializes
// commits.
func (d *Driver) classifyBatch(ctx context.Context, txids []string) ([]classifyResult, error) {
	results := make([]classifyResult, len(txids))
	g, gctx := errgroup.WithContext(ctx)
	for i, txid := range txids {
		i, txid := i, txid
		g.Go(func() error {
			results[i] = d.classifyOne(gctx, txid)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *Driver) classifyOne(ctx context.Context, txid string) classifyResult {
	tx, err := d.store.GetEnrichedTransaction(ctx, txid)
	if err != nil {
		return classifyResult{txid: txid, err: fmt.Errorf("load enriched transaction: %w", err)}
	}
	outputs, err := d.store.GetP2MSOutputs(ctx, txid)
	if err != nil {
		return classifyResult{txid: txid, err: fmt.Errorf("load p2ms outputs: %w", err)}
	}
	if len(outputs) == 0 {
		return classifyResult{txid: txid, err: fmt.Errorf("no p2ms outputs for enriched transaction")}
	}

	c := Classify(d.cascade, tx, outputs)
	outputResults := fillDefaults(c, outputs)

	txClass := models.TransactionClassification{
		Txid:                   txid,
		Protocol:               c.Protocol,
		Variant:                c.Variant,
		ContentType:            c.ContentType,
		TransportProtocol:      c.TransportProtocol,
		ProtocolSignatureFound: c.ProtocolSignatureFound,
		AdditionalMetadata:     c.AdditionalMetadata,
	}

	outClasses := make([]models.P2MSOutputClassification, 0, len(outputs))
	for _, o := range outputs {
		r := outputResults[o.Vout]
		outClasses = append(outClasses, models.P2MSOutputClassification{
			Txid:            txid,
			Vout:            o.Vout,
			Protocol:        c.Protocol,
			Variant:         r.Variant,
			ContentType:     r.ContentType,
			IsSpendable:     r.IsSpendable,
			SpendabilityTag: r.SpendabilityTag,
			RealPubkeyCount: r.RealPubkeyCount,
			BurnKeyCount:    r.BurnKeyCount,
			DataKeyCount:    r.DataKeyCount,
		})
	}

	return classifyResult{txid: txid, txClass: txClass, outputs: outClasses, payload: c.DecodedPayload}
}

// writeArtifact persists a classified output's decoded payload via the
// artifact writer, when one is configured and the detector recovered a
// payload (spec.md §6). Decompresses known compressed content types
// first so the file on disk is the viewable payload, not its
// container.
func (d *Driver) writeArtifact(r classifyResult) {
	if d.writer == nil || len(r.payload) == 0 {
		return
	}
	payload, contentType := r.payload, r.txClass.ContentType
	if decompressed, decompressedType, ok := decompressArtifact(payload, contentType); ok {
		payload, contentType = decompressed, decompressedType
	}
	if _, err := d.writer.Write(string(r.txClass.Protocol), contentType, r.txid, payload); err != nil {
		log.Printf("[Classifier] artifact write failed for %s: %v", r.txid, err)
	}
}

// decompressArtifact unwraps a GZIP/ZLIB/Bzip2 container so the
// artifact on disk is the payload it carries. Returns ok=false and
// leaves the original bytes untouched if contentType doesn't name a
// supported container or decompression fails (e.g. a truncated
// payload recovered from a pruned chain).
func decompressArtifact(payload []byte, contentType string) (decompressed []byte, newContentType string, ok bool) {
	var clear []byte
	var err error
	switch contentType {
	case "application/gzip":
		clear, err = decode.DecompressGZIP(payload)
	case "application/zlib":
		clear, err = decode.DecompressZLIB(payload)
	case "application/x-bzip2":
		clear, err = decode.DecompressBzip2(payload)
	default:
		return nil, "", false
	}
	if err != nil {
		return nil, "", false
	}
	return clear, "application/octet-stream", true
}
