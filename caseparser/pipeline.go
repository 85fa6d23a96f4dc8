// Package caseparser turns raw case report files into drug and regimen entries.
package caseparser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
	"github.com/giygas/cureid-api/metrics"
)

var _ interfaces.Ingestor = (*Pipeline)(nil)

// Pipeline normalizes every case of a file and hands the entries to the sinks.
// Cases are processed in order and the first failure aborts the file.
type Pipeline struct {
	drugs      interfaces.DrugSink
	regimens   interfaces.RegimenSink
	normalizer *Normalizer
}

// NewPipeline creates a pipeline. A nil normalizer uses random UUIDs for entry ids.
func NewPipeline(drugs interfaces.DrugSink, regimens interfaces.RegimenSink, normalizer *Normalizer) *Pipeline {
	if normalizer == nil {
		normalizer = defaultNormalizer
	}
	return &Pipeline{drugs: drugs, regimens: regimens, normalizer: normalizer}
}

// Process parses one raw file. File naming and body decoding errors are fatal;
// a malformed case is logged with its id and returned.
func (p *Pipeline) Process(ctx context.Context, fileName string, body []byte) (*interfaces.IngestResult, error) {
	drugID, drugName, err := ParseFileName(fileName)
	if err != nil {
		logging.Error("Rejected case file", "file", fileName, "error", err)
		return nil, err
	}

	rawCases, err := DecodeCases(body)
	if err != nil {
		logging.Error("Failed to decode case file", "file", fileName, "error", err)
		return nil, fmt.Errorf("decode %s: %w", fileName, err)
	}

	logging.Info("Processing case file", "file", fileName, "drug_id", drugID, "drug_name", drugName, "cases", len(rawCases))

	for i, c := range rawCases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := p.processCase(ctx, drugID, drugName, c); err != nil {
			logging.Error("Failed to process case",
				"file", fileName,
				"case_index", i,
				"case_id", c.CaseID(),
				"error", err,
			)
			return nil, fmt.Errorf("process %s: %w", fileName, err)
		}
		metrics.CasesIngested.Inc()
	}

	return &interfaces.IngestResult{
		FileName: fileName,
		DrugID:   drugID,
		DrugName: drugName,
		Cases:    len(rawCases),
	}, nil
}

func (p *Pipeline) processCase(ctx context.Context, drugID int, drugName string, c RawCase) error {
	drug, err := p.normalizer.BuildDrugEntry(drugID, drugName, c)
	if err != nil {
		return err
	}
	regimen, err := p.normalizer.BuildRegimenEntry(c)
	if err != nil {
		return err
	}

	if regimen.Improved+regimen.Deteriorated+regimen.Undetermined == 0 {
		metrics.OutcomeUnmatched.WithLabelValues(outcomeLabel(regimen.OutcomeComputed)).Inc()
		logging.Debug("Outcome matched no tally", "case_id", regimen.CureID, "outcome_computed", regimen.OutcomeComputed)
	}

	if err := p.drugs.EmitDrug(ctx, drug); err != nil {
		return fmt.Errorf("emit drug entry: %w", err)
	}
	if err := p.regimens.EmitRegimen(ctx, regimen); err != nil {
		return fmt.Errorf("emit regimen entry: %w", err)
	}
	return nil
}

// outcomeLabel maps an unmatched outcome to a fixed label set. The raw value
// only goes to the debug log.
func outcomeLabel(v string) string {
	if strings.TrimSpace(v) == "" {
		return "empty"
	}
	return "other"
}

// DecodeCases parses a file body as a JSON array of case objects. Bodies that
// are not valid UTF-8 are decoded as ISO-8859-1.
func DecodeCases(body []byte) ([]RawCase, error) {
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(body) {
		decoded, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("decode ISO-8859-1 body: %w", err)
		}
		body = decoded
	}

	var cases []RawCase
	if err := json.Unmarshal(body, &cases); err != nil {
		return nil, err
	}
	return cases, nil
}
