package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional values substituted into {name} placeholders
// (for example "key" or "collection").
type Translator interface {
	Message(code string, data map[string]string) string
}

var catalog = map[string]map[string]string{
	"en": {
		"parse_error":      "malformed JSON payload",
		"duplicate_key":    "duplicate key {key}",
		"too_deep":         "payload nests deeper than allowed",
		"truncated":        "payload exceeds the size limit",
		"invalid_schema":   "invalid schema document",
		"schema_not_found": "no schema registered for collection {collection}",
	},
	"ja": {
		"parse_error":      "JSON の解析に失敗しました",
		"duplicate_key":    "キー {key} が重複しています",
		"too_deep":         "ネストが深すぎます",
		"truncated":        "サイズ上限を超えています",
		"invalid_schema":   "スキーマ文書が不正です",
		"schema_not_found": "コレクション {collection} のスキーマが登録されていません",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	msg, ok := catalog[t.lang][code]
	if !ok {
		return code
	}
	if len(data) == 0 {
		return msg
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

type holder struct{ tr Translator }

var current atomic.Value

func init() { current.Store(holder{dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := catalog[lang]; !ok {
		lang = "en"
	}
	current.Store(holder{dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(holder{tr})
}

// T returns the message for code using the current Translator.
func T(code string, data map[string]string) string {
	return current.Load().(holder).tr.Message(code, data)
}
