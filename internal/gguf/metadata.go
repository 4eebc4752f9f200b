package gguf

import (
	"fmt"
)

// ModelInfo is the subset of model metadata corpus preparation cares about.
type ModelInfo struct {
	Architecture  string `json:"architecture"`
	Name          string `json:"name,omitempty"`
	ContextLength int    `json:"context_length"`
	Tokenizer     string `json:"tokenizer,omitempty"`
	VocabSize     int    `json:"vocab_size"`
}

// Info summarizes the model described by md.
func (m *Metadata) Info() ModelInfo {
	info := ModelInfo{}
	info.Architecture, _ = m.KV[KeyArchitecture].(string)
	info.Name, _ = m.KV[KeyName].(string)
	info.Tokenizer, _ = m.KV[KeyTokenizer].(string)

	info.ContextLength = int(getKVInt(m.KV, info.Architecture+".context_length", "general.context_length"))
	if info.ContextLength == 0 {
		info.ContextLength = 2048
	}
	if arr, ok := m.KV[KeyTokens].([]interface{}); ok {
		info.VocabSize = len(arr)
	}
	return info
}

// Tokens returns the tokenizer vocabulary ordered by token id.
func (m *Metadata) Tokens() ([]string, error) {
	val, ok := m.KV[KeyTokens]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, KeyTokens)
	}
	arr, ok := val.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid type for %s: %T", KeyTokens, val)
	}
	tokens := make([]string, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("token %d is not a string", i)
		}
		tokens[i] = s
	}
	return tokens, nil
}

// SpecialToken returns the vocabulary entry whose id is stored under key,
// e.g. KeyEOSTokenID.
func (m *Metadata) SpecialToken(key string) (string, error) {
	if _, ok := m.KV[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	id, ok := toUint(m.KV[key])
	if !ok {
		return "", fmt.Errorf("invalid type for %s: %T", key, m.KV[key])
	}
	tokens, err := m.Tokens()
	if err != nil {
		return "", err
	}
	if id >= uint64(len(tokens)) {
		return "", fmt.Errorf("%s %d out of range for vocabulary of %d", key, id, len(tokens))
	}
	return tokens[id], nil
}

// EOSToken returns the end-of-sequence marker string.
func (m *Metadata) EOSToken() (string, error) {
	return m.SpecialToken(KeyEOSTokenID)
}

func getKVInt(kv map[string]interface{}, keys ...string) uint64 {
	for _, key := range keys {
		if val, ok := kv[key]; ok {
			if v, ok := toUint(val); ok {
				return v
			}
		}
	}
	return 0
}

func toUint(val interface{}) (uint64, bool) {
	switch v := val.(type) {
	case uint8:
		return uint64(v), true
	case uint16:
		return uint64(v), true
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int8:
		return uint64(v), v >= 0
	case int16:
		return uint64(v), v >= 0
	case int32:
		return uint64(v), v >= 0
	case int64:
		return uint64(v), v >= 0
	case int:
		return uint64(v), v >= 0
	}
	return 0, false
}
