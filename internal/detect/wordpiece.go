package detect

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// Word is a whitespace/punctuation delimited token with its byte offsets in
// the source text. Offsets survive subword splitting: every piece of a word
// maps back to the word's character range.
type Word struct {
	Text       string
	Start, End int
}

// WordPieceTokenizer implements the BERT-style subword scheme used by the NER
// model: whole words first, then greedy longest-match pieces prefixed "##".
type WordPieceTokenizer struct {
	vocab      map[string]int
	unkID      int
	clsID      int
	sepID      int
	maxWordLen int
	maxSeqLen  int
	lowercase  bool
}

// Encoding is the model-ready view of one text: piece IDs plus the mapping
// from each piece back to the word (and hence character range) it came from.
// PieceToWord is -1 for the [CLS]/[SEP] positions.
type Encoding struct {
	InputIDs      []int64
	AttentionMask []int64
	TokenTypeIDs  []int64
	PieceToWord   []int
	Words         []Word
}

type tokenizerFile struct {
	Model struct {
		Vocab map[string]int `json:"vocab"`
	} `json:"model"`
	Normalizer struct {
		Lowercase *bool `json:"lowercase"`
	} `json:"normalizer"`
}

func NewWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseWordPieceTokenizer(raw)
}

// ParseWordPieceTokenizer builds a tokenizer from the raw contents of a
// HuggingFace tokenizer.json.
func ParseWordPieceTokenizer(raw []byte) (*WordPieceTokenizer, error) {
	var cfg tokenizerFile
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if len(cfg.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer.json model.vocab is empty")
	}
	lowercase := true
	if cfg.Normalizer.Lowercase != nil {
		lowercase = *cfg.Normalizer.Lowercase
	}
	t := &WordPieceTokenizer{vocab: cfg.Model.Vocab, maxWordLen: 100, maxSeqLen: 512, lowercase: lowercase}
	var ok bool
	if t.unkID, ok = t.vocab["[UNK]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [UNK]")
	}
	if t.clsID, ok = t.vocab["[CLS]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [CLS]")
	}
	if t.sepID, ok = t.vocab["[SEP]"]; !ok {
		return nil, fmt.Errorf("tokenizer vocab is missing [SEP]")
	}
	return t, nil
}

// Encode tokenizes text and records the piece-to-word offset mapping. Output
// is truncated at the model's maximum sequence length; callers keep chunks
// small enough that truncation never fires in practice.
func (t *WordPieceTokenizer) Encode(text string) *Encoding {
	words := splitWords(text)
	enc := &Encoding{
		InputIDs:      []int64{int64(t.clsID)},
		AttentionMask: []int64{1},
		TokenTypeIDs:  []int64{0},
		PieceToWord:   []int{-1},
		Words:         words,
	}
	for wi, word := range words {
		for _, pieceID := range t.wordToPieces(word.Text) {
			if len(enc.InputIDs) >= t.maxSeqLen-1 {
				break
			}
			enc.InputIDs = append(enc.InputIDs, int64(pieceID))
			enc.AttentionMask = append(enc.AttentionMask, 1)
			enc.TokenTypeIDs = append(enc.TokenTypeIDs, 0)
			enc.PieceToWord = append(enc.PieceToWord, wi)
		}
		if len(enc.InputIDs) >= t.maxSeqLen-1 {
			break
		}
	}
	enc.InputIDs = append(enc.InputIDs, int64(t.sepID))
	enc.AttentionMask = append(enc.AttentionMask, 1)
	enc.TokenTypeIDs = append(enc.TokenTypeIDs, 0)
	enc.PieceToWord = append(enc.PieceToWord, -1)
	return enc
}

func (t *WordPieceTokenizer) wordToPieces(word string) []int {
	if word == "" {
		return []int{t.unkID}
	}
	normalized := word
	if t.lowercase {
		normalized = strings.ToLower(word)
	}
	runes := []rune(normalized)
	if len(runes) > t.maxWordLen {
		return []int{t.unkID}
	}
	if id, ok := t.vocab[string(runes)]; ok {
		return []int{id}
	}
	ids := make([]int, 0, 4)
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := t.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found == -1 {
			return []int{t.unkID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// splitWords splits on anything that is not a letter or digit, keeping byte
// offsets so spans can be resolved back to the original text.
func splitWords(text string) []Word {
	words := make([]Word, 0)
	start := -1
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			words = append(words, Word{Text: text[start:i], Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		words = append(words, Word{Text: text[start:], Start: start, End: len(text)})
	}
	return words
}
