package detect

import "testing"

const testTokenizerJSON = `{
  "model": {"vocab": {
    "[UNK]": 0, "[CLS]": 1, "[SEP]": 2,
    "alice": 3, "met": 4, "bob": 5,
    "jo": 6, "##hn": 7, "smith": 8
  }},
  "normalizer": {"lowercase": true}
}`

func testTokenizer(t *testing.T) *WordPieceTokenizer {
	t.Helper()
	tok, err := ParseWordPieceTokenizer([]byte(testTokenizerJSON))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestSplitWordsOffsets(t *testing.T) {
	words := splitWords("Alice met Bob.")
	if len(words) != 3 {
		t.Fatalf("expected 3 words, got %d", len(words))
	}
	if words[2].Text != "Bob" || words[2].Start != 10 || words[2].End != 13 {
		t.Fatalf("unexpected word mapping: %+v", words[2])
	}
}

func TestEncodePieceToWordMapping(t *testing.T) {
	tok := testTokenizer(t)
	enc := tok.Encode("Alice met Bob")
	// [CLS] alice met bob [SEP]
	if len(enc.InputIDs) != 5 {
		t.Fatalf("expected 5 pieces, got %d", len(enc.InputIDs))
	}
	if enc.PieceToWord[0] != -1 || enc.PieceToWord[4] != -1 {
		t.Fatalf("special tokens must map to -1: %v", enc.PieceToWord)
	}
	if enc.PieceToWord[1] != 0 || enc.PieceToWord[3] != 2 {
		t.Fatalf("unexpected piece mapping: %v", enc.PieceToWord)
	}
}

func TestWordToPiecesGreedyLongestMatch(t *testing.T) {
	tok := testTokenizer(t)
	ids := tok.wordToPieces("John")
	if len(ids) != 2 || ids[0] != 6 || ids[1] != 7 {
		t.Fatalf("expected [jo ##hn], got %v", ids)
	}
	if ids := tok.wordToPieces("zzz"); len(ids) != 1 || ids[0] != 0 {
		t.Fatalf("unknown word should map to [UNK], got %v", ids)
	}
}

func TestParseTokenizerRejectsMissingSpecials(t *testing.T) {
	_, err := ParseWordPieceTokenizer([]byte(`{"model":{"vocab":{"a":0}}}`))
	if err == nil {
		t.Fatal("expected error for vocab without special tokens")
	}
}
