// Package export writes labeled descriptors in libSVM's sparse text format.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/logger"
)

// Label pairs a libSVM integer class with its original string label.
type Label struct {
	Class int
	Name  string
}

// VectorGetter is the subset of descriptor.Index the export needs.
type VectorGetter interface {
	Get(ctx context.Context, key string) (descriptor.Vector, error)
}

// LibSVM reads "key,label" rows from labels and writes one libSVM line per
// row to w. Labels become integers starting at 1 in first-seen order. Only
// non-zero components are written, 1-based, with twelve decimals. The
// returned association is ordered by class.
func LibSVM(ctx context.Context, index VectorGetter, labels io.Reader, w io.Writer) ([]Label, error) {
	log := logger.FromContext(ctx).With("component", "libsvm-export")

	r := csv.NewReader(labels)
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true
	out := bufio.NewWriter(w)

	classes := make(map[string]int)
	var assoc []Label
	var line []byte
	for row := 0; ; row++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "reading labels: %v", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, name := rec[0], rec[1]

		v, err := index.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("row %d: descriptor %s: %w", row+1, key, err)
		}
		class, ok := classes[name]
		if !ok {
			class = len(classes) + 1
			classes[name] = class
			assoc = append(assoc, Label{Class: class, Name: name})
		}
		log.Debug("exporting descriptor", "row", row, "key", key, "class", class)

		line = appendLine(line[:0], class, v.Values)
		if _, err := out.Write(line); err != nil {
			return nil, fmt.Errorf("writing libsvm line: %w", err)
		}
	}
	if err := out.Flush(); err != nil {
		return nil, fmt.Errorf("flushing libsvm output: %w", err)
	}

	log.Info("integer label association", "classes", len(assoc))
	for _, l := range assoc {
		log.Info("label", "class", l.Class, "name", l.Name)
	}
	return assoc, nil
}

func appendLine(dst []byte, class int, values []float32) []byte {
	dst = strconv.AppendInt(dst, int64(class), 10)
	dst = append(dst, ' ')
	first := true
	for j, f := range values {
		if f == 0 {
			continue
		}
		if !first {
			dst = append(dst, ' ')
		}
		first = false
		dst = strconv.AppendInt(dst, int64(j+1), 10)
		dst = append(dst, ':')
		dst = strconv.AppendFloat(dst, float64(f), 'f', 12, 64)
	}
	return append(dst, '\n')
}
