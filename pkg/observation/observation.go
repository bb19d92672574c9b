// Package observation implements the row type every MPC primitive and the
// sort operate over (spec.md §3): a fixed-width tuple of secret shares, with
// large-field "key" and "payload" columns plus single-byte boolean payload
// columns.
package observation

import (
	"fmt"

	"github.com/fortissimo/mpc/pkg/codec"
	"github.com/fortissimo/mpc/pkg/field"
)

// Observation is one row: parallel columns of field-element shares plus
// single-byte boolean shares, matching the original's three-vector layout.
type Observation struct {
	KeyCols           []*field.Element
	ArithmeticPayload []*field.Element
	XORPayload        []byte
}

// Schema describes the column counts an ObservationList enforces across all
// its rows, so a malformed or mismatched row is rejected before it can
// desynchronize a batched comparison.
type Schema struct {
	KeyCols        int
	ArithmeticCols int
	XORCols        int
}

// Validate reports whether o conforms to s.
func (s Schema) Validate(o *Observation) error {
	if len(o.KeyCols) != s.KeyCols {
		return fmt.Errorf("observation: expected %d key columns, got %d", s.KeyCols, len(o.KeyCols))
	}
	if len(o.ArithmeticPayload) != s.ArithmeticCols {
		return fmt.Errorf("observation: expected %d arithmetic payload columns, got %d", s.ArithmeticCols, len(o.ArithmeticPayload))
	}
	if len(o.XORPayload) != s.XORCols {
		return fmt.Errorf("observation: expected %d xor payload columns, got %d", s.XORCols, len(o.XORPayload))
	}
	return nil
}

// List is a schema-checked sequence of Observations, the unit SISOSort
// shuffles and sorts.
type List struct {
	Schema Schema
	Rows   []*Observation
}

// NewList builds a List after validating every row against schema.
func NewList(schema Schema, rows []*Observation) (*List, error) {
	for i, r := range rows {
		if err := schema.Validate(r); err != nil {
			return nil, fmt.Errorf("observation: row %d: %w", i, err)
		}
	}
	return &List{Schema: schema, Rows: rows}, nil
}

// Len returns the number of rows.
func (l *List) Len() int { return len(l.Rows) }

// Swap exchanges rows i and j in place, the primitive both the Waksman
// shuffle and quicksort's Hoare partitioning use to rearrange the list.
func (l *List) Swap(i, j int) {
	l.Rows[i], l.Rows[j] = l.Rows[j], l.Rows[i]
}

// WriteTo serializes an Observation's columns (schema is assumed known to
// the reader out of band, e.g. from the enclosing List).
func (o *Observation) WriteTo(b *codec.Buffer) error {
	for _, c := range o.KeyCols {
		if err := c.WriteTo(b); err != nil {
			return err
		}
	}
	for _, c := range o.ArithmeticPayload {
		if err := c.WriteTo(b); err != nil {
			return err
		}
	}
	b.WriteBytes(o.XORPayload)
	return nil
}

// ReadObservation parses an Observation matching schema out of b.
func ReadObservation(b *codec.Buffer, f *field.Field, schema Schema) (*Observation, error) {
	o := &Observation{
		KeyCols:           make([]*field.Element, schema.KeyCols),
		ArithmeticPayload: make([]*field.Element, schema.ArithmeticCols),
	}
	for i := range o.KeyCols {
		e, err := f.ReadFrom(b)
		if err != nil {
			return nil, fmt.Errorf("observation: key column %d: %w", i, err)
		}
		o.KeyCols[i] = e
	}
	for i := range o.ArithmeticPayload {
		e, err := f.ReadFrom(b)
		if err != nil {
			return nil, fmt.Errorf("observation: arithmetic column %d: %w", i, err)
		}
		o.ArithmeticPayload[i] = e
	}
	xor, err := b.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("observation: xor payload: %w", err)
	}
	if len(xor) != schema.XORCols {
		return nil, fmt.Errorf("observation: expected %d xor columns, got %d", schema.XORCols, len(xor))
	}
	o.XORPayload = xor
	return o, nil
}
