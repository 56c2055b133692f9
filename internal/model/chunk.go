package model

import "fmt"

type SectionType string

const (
	SectionExplanation SectionType = "explanation"
	SectionExample     SectionType = "example"
)

type ChunkRecord struct {
	ID          string      `json:"id"`
	Category    string      `json:"category"`
	AttackType  string      `json:"attack_type"`
	SourcePath  string      `json:"source_path"`
	ChunkIndex  int         `json:"chunk_index"`
	SectionType SectionType `json:"section_type"`
	Text        string      `json:"text"`
	Embedding   []float32   `json:"embedding"`
}

func ChunkID(category, filename string, index int) string {
	return fmt.Sprintf("%s::%s::chunk_%d", category, filename, index)
}
