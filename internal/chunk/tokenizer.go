package chunk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the tokenizer used for counting and chunking.
const DefaultEncoding = "cl100k_base"

// ByteEncoding selects ByteTokenizer.
const ByteEncoding = "bytes"

// ErrTokenize wraps every tokenizer failure.
var ErrTokenize = errors.New("tokenizer failure")

// Tokenizer converts between text and token ids. Decode must be the exact
// inverse of Encode on valid UTF-8 input.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
	CountTokens(text string) (int, error)
}

// New returns the tokenizer registered under name.
func New(name string) (Tokenizer, error) {
	switch name {
	case ByteEncoding:
		return ByteTokenizer{}, nil
	case "":
		name = DefaultEncoding
	}
	return NewTiktoken(name)
}

var loaderOnce sync.Once

// NewTiktoken loads a BPE encoding from the embedded offline tables, so no
// network access happens at run time.
func NewTiktoken(encoding string) (Tokenizer, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", ErrTokenize, encoding, err)
	}
	return &tiktokenizer{enc: enc}, nil
}

type tiktokenizer struct {
	enc *tiktoken.Tiktoken
}

// Encode treats special-token markup as ordinary text.
func (t *tiktokenizer) Encode(text string) (tokens []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			tokens, err = nil, fmt.Errorf("%w: encode: %v", ErrTokenize, r)
		}
	}()
	return t.enc.Encode(text, nil, nil), nil
}

func (t *tiktokenizer) Decode(tokens []int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: decode: %v", ErrTokenize, r)
		}
	}()
	return t.enc.Decode(tokens), nil
}

func (t *tiktokenizer) CountTokens(text string) (int, error) {
	toks, err := t.Encode(text)
	return len(toks), err
}

// ByteTokenizer maps every byte to one token. It is exact and fast, and
// makes token budgets equal byte budgets.
type ByteTokenizer struct{}

func (ByteTokenizer) Encode(text string) ([]int, error) {
	out := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = int(text[i])
	}
	return out, nil
}

func (ByteTokenizer) Decode(tokens []int) (string, error) {
	b := make([]byte, len(tokens))
	for i, t := range tokens {
		if t < 0 || t > 0xff {
			return "", fmt.Errorf("%w: token %d out of byte range", ErrTokenize, t)
		}
		b[i] = byte(t)
	}
	return string(b), nil
}

func (ByteTokenizer) CountTokens(text string) (int, error) { return len(text), nil }
