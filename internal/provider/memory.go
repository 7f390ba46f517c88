package provider

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

//go:embed seed.json
var seedJSON []byte

// Memory keeps every document group in a map. It backs tests and the
// zero-configuration development setup.
type Memory struct {
	groups map[groupKey]Group
}

type groupKey struct {
	entity string
	field  string
	key    string
}

func NewMemory() *Memory {
	return &Memory{groups: map[groupKey]Group{}}
}

// Put stores the group for one (entity, field, key), replacing any
// previous content.
func (m *Memory) Put(entity, field, key string, docs Group) {
	m.groups[groupKey{entity, field, key}] = docs
}

// Load stores every document in docs.
func (m *Memory) Load(docs []Document) {
	for _, d := range docs {
		m.Put(d.Entity, d.Field, d.Key, d.Docs)
	}
}

func (m *Memory) Fetch(ctx context.Context, entity, field string, keys []string) ([]Group, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	groups := make([]Group, len(keys))
	for i, key := range keys {
		groups[i] = m.groups[groupKey{entity, field, key}]
	}
	return groups, nil
}

// ReadDocuments decodes a seed stream: a JSON array of documents.
func ReadDocuments(r io.Reader) ([]Document, error) {
	var docs []Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&docs); err != nil {
		return nil, fmt.Errorf("decoding seed documents: %w", err)
	}
	return docs, nil
}

// ReadDocumentsFile decodes a seed file.
func ReadDocumentsFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadDocuments(f)
}

// SeedDocuments returns the embedded development dataset.
func SeedDocuments() []Document {
	var docs []Document
	if err := json.Unmarshal(seedJSON, &docs); err != nil {
		panic(fmt.Sprintf("embedded seed is malformed: %v", err))
	}
	return docs
}

// Seed returns a memory provider preloaded with the embedded dataset.
func Seed() *Memory {
	m := NewMemory()
	m.Load(SeedDocuments())
	return m
}
