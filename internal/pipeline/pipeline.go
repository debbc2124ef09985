// Package pipeline is the Pipeline Controller: stage sequencing,
// checkpoint resume, and graceful shutdown across the three stages
// (spec.md §2, §9).
package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/rawblock/p2ms-forensics/internal/artifact"
	"github.com/rawblock/p2ms-forensics/internal/bitcoin"
	"github.com/rawblock/p2ms-forensics/internal/classifier"
	"github.com/rawblock/p2ms-forensics/internal/config"
	"github.com/rawblock/p2ms-forensics/internal/enricher"
	"github.com/rawblock/p2ms-forensics/internal/extractor"
	"github.com/rawblock/p2ms-forensics/internal/statusapi"
	"github.com/rawblock/p2ms-forensics/internal/store"
)

// Controller sequences Extractor -> Enricher -> Classifier against one
// shared Store. Global state is avoided; every stage is handed the
// collaborators it needs explicitly (spec.md §9, "Global state. None
// required.").
type Controller struct {
	cfg      *config.Config
	store    *store.Store
	node     *bitcoin.Client
	reporter *statusapi.Reporter // optional; nil disables progress reporting
}

func NewController(cfg *config.Config, s *store.Store, node *bitcoin.Client, reporter *statusapi.Reporter) *Controller {
	return &Controller{cfg: cfg, store: s, node: node, reporter: reporter}
}

// Run executes all three stages in order. ctx cancellation (operator
// shutdown) is honored between stages and within each stage's batch
// loop; in-flight batches are always allowed to finish or checkpoint
// cleanly before returning (spec.md §7, "Cancellation").
func (c *Controller) Run(ctx context.Context) error {
	log.Println("[Pipeline] Stage 1: Extractor")
	ext := extractor.New(c.store, c.reporter)
	if err := ext.Run(ctx, c.cfg.UTXOCSVPath, c.cfg.BatchSize); err != nil {
		return fmt.Errorf("pipeline: stage 1 extractor: %w", err)
	}
	if ctx.Err() != nil {
		log.Println("[Pipeline] shutdown requested after Stage 1")
		return nil
	}

	log.Println("[Pipeline] Stage 2: Enricher")
	enr := enricher.New(c.store, c.node, c.reporter)
	if err := enr.Run(ctx, c.cfg.BatchSize); err != nil {
		return fmt.Errorf("pipeline: stage 2 enricher: %w", err)
	}
	if ctx.Err() != nil {
		log.Println("[Pipeline] shutdown requested after Stage 2")
		return nil
	}

	log.Println("[Pipeline] Stage 3: Classifier")
	var writer *artifact.Writer
	if c.cfg.WriteArtifacts {
		writer = artifact.NewWriter(c.cfg.DecodedArtifactDir)
	}
	drv := classifier.NewDriver(c.store, c.cfg.CounterpartyTier2, c.cfg.StampsRequireDecodedSignature, writer, c.reporter)
	if err := drv.Run(ctx, c.cfg.BatchSize); err != nil {
		return fmt.Errorf("pipeline: stage 3 classifier: %w", err)
	}

	log.Println("[Pipeline] complete")
	return nil
}
