// Package rsl carries the Rule Specification Language assets the generation
// prompts are built from: the core grammar, the builtin-function catalog,
// and existing rule examples.
//
// The grammar is never parsed or executed here; it is passed through as a
// constraint in prompts and a validation target for the judge.
package rsl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Grammar is the RSL core syntax, embedded verbatim in generation prompts.
const Grammar = `
Specification := Rule Id Body
Body := '{' Stmt Stmt* '}'
Stmt := ForStmt | IfStmt | AssertStmt | DeclStmt ';'

ForStmt := 'for' '(' Type Id 'in' Exp ')' Body
IfStmt := 'if' '(' Exp ')' Body

AssertStmt := 'assert' '(' Exp ')' '{' MsgStmt ';' '}'
MsgStmt := 'msg' '(' ',' SimExp (',' SimExp)* ')'

DeclStmt := Type Id '=' Exp

Exp := SimExp
     | SimExp AND Exp
     | SimExp OR  Exp
     | NOT Exp

SimExp := Id
        | Lit
        | FunctionCall
        | '(' Exp ')'
        | FunctionCall '==' SimExp
        | exists '(' Type Id in Exp ')' '(' Exp ')'

Type := '⟨' Id '⟩' | file | class | method | field | String
Lit := StringLit | CharLit | IntLit | FloatLit
FunctionCall := Id '(' Params ')'
Params := SimExp (',' SimExp)*
`

// Builtin describes one catalog entry.
type Builtin struct {
	Name      string `json:"name"`
	Purpose   string `json:"purpose"`
	Signature string `json:"signature"`
	Return    string `json:"return"`
	Category  string `json:"category"`
}

// Rule is one existing rule example loaded from disk.
type Rule struct {
	Filename string
	Content  string
}

// Catalog holds the closed list of valid builtin functions plus the rule
// examples used as few-shot context.
type Catalog struct {
	Builtins []Builtin
	Examples []Rule
}

// LoadBuiltins reads the builtin catalog from a JSON file of the form
// {"builtinfs": [...]}. A missing file yields an empty (non-nil) slice:
// generation still works, just without the catalog constraint.
func LoadBuiltins(path string) ([]Builtin, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Builtin{}, nil
		}
		return nil, fmt.Errorf("rsl: read builtins: %w", err)
	}
	var doc struct {
		Builtins []Builtin `json:"builtinfs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rsl: parse builtins %s: %w", path, err)
	}
	return doc.Builtins, nil
}

// LoadExamples reads every .txt file in dir as a rule example.
// A missing directory yields an empty slice.
func LoadExamples(dir string) ([]Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Rule{}, nil
		}
		return nil, fmt.Errorf("rsl: read examples dir: %w", err)
	}
	var rules []Rule
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		rules = append(rules, Rule{Filename: e.Name(), Content: string(content)})
	}
	return rules, nil
}

// FormatBuiltins renders the catalog grouped by category for generation
// prompts.
func FormatBuiltins(builtins []Builtin) string {
	if len(builtins) == 0 {
		return "No RSL builtins available."
	}

	byCategory := make(map[string][]Builtin)
	var order []string
	for _, b := range builtins {
		cat := b.Category
		if cat == "" {
			cat = "other"
		}
		if _, ok := byCategory[cat]; !ok {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], b)
	}
	sort.Strings(order)

	var sb strings.Builder
	sb.WriteString("=== RSL Built-in Functions ===\n\n")
	for _, cat := range order {
		fmt.Fprintf(&sb, "## %s:\n", strings.ToUpper(cat))
		for _, b := range byCategory[cat] {
			sig := b.Signature
			if sig == "" {
				sig = "N/A"
			}
			ret := b.Return
			if ret == "" {
				ret = "N/A"
			}
			fmt.Fprintf(&sb, "  - %s: %s\n    Signature: %s\n    Return: %s\n", b.Name, b.Purpose, sig, ret)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// FormatNames renders the concise name list used by the function-existence
// check and the judge.
func FormatNames(builtins []Builtin) string {
	if len(builtins) == 0 {
		return "No RSL built-in functions available."
	}
	names := make([]string, 0, len(builtins))
	for _, b := range builtins {
		if b.Name != "" {
			names = append(names, b.Name)
		}
	}
	return "Valid RSL Built-in Functions:\n" + strings.Join(names, ", ")
}

// FormatExamples renders the few-shot rule examples for generation prompts.
func FormatExamples(rules []Rule) string {
	if len(rules) == 0 {
		return "No existing rule examples available."
	}
	var sb strings.Builder
	sb.WriteString("=== Existing RSL Rule Examples ===\n\n")
	for i, r := range rules {
		fmt.Fprintf(&sb, "--- Example %d: %s ---\n%s\n\n", i+1, r.Filename, r.Content)
	}
	return sb.String()
}
