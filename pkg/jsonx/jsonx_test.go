package jsonx

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Winner string `json:"winner_id"`
	Score  int    `json:"score"`
}

func TestDecodeDirect(t *testing.T) {
	var out sample
	require.NoError(t, Decode(`{"winner_id":"claude","score":91}`, &out))
	require.Equal(t, "claude", out.Winner)
	require.Equal(t, 91, out.Score)
}

func TestDecodeFencedBlock(t *testing.T) {
	raw := "Here is the selection you asked for:\n```json\n{\"winner_id\":\"runway\",\"score\":77}\n```\nLet me know if you need changes."
	var out sample
	require.NoError(t, Decode(raw, &out))
	require.Equal(t, "runway", out.Winner)
}

func TestDecodeFencedBlockWithoutHint(t *testing.T) {
	raw := "```\n{\"winner_id\":\"pika\"}\n```"
	var out sample
	require.NoError(t, Decode(raw, &out))
	require.Equal(t, "pika", out.Winner)
}

func TestDecodeBraceSpan(t *testing.T) {
	raw := `Sure! The result is {"winner_id":"suno","score":68} as requested.`
	var out sample
	require.NoError(t, Decode(raw, &out))
	require.Equal(t, "suno", out.Winner)
}

func TestDecodeBraceSpanWithNestedBracesInStrings(t *testing.T) {
	raw := `prefix {"winner_id":"v0","note":"use {curly} braces"} suffix`
	var out struct {
		Winner string `json:"winner_id"`
		Note   string `json:"note"`
	}
	require.NoError(t, Decode(raw, &out))
	require.Equal(t, "use {curly} braces", out.Note)
}

func TestDecodeFailureIsParseError(t *testing.T) {
	var out sample
	err := Decode("the model refused to answer in json", &out)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestDecodeEmptyInput(t *testing.T) {
	var out sample
	err := Decode("   \n", &out)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "direct", parseErr.Stage)
}

func TestExtractObjectSpan(t *testing.T) {
	span, ok := ExtractObjectSpan(`noise {"a":{"b":1}} trailing {"c":2}`)
	require.True(t, ok)
	require.Equal(t, `{"a":{"b":1}}`, span)

	_, ok = ExtractObjectSpan("no braces at all")
	require.False(t, ok)

	_, ok = ExtractObjectSpan(`{"unterminated": true`)
	require.False(t, ok)
}

func TestExtractFencedBlock(t *testing.T) {
	_, ok := ExtractFencedBlock("no fences")
	require.False(t, ok)

	_, ok = ExtractFencedBlock("```json\n")
	require.False(t, ok)

	block, ok := ExtractFencedBlock("```json\n{\"a\":1}\n```")
	require.True(t, ok)
	require.JSONEq(t, `{"a":1}`, block)
}
