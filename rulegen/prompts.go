package rulegen

import (
	"fmt"
	"strings"

	"github.com/metabug/rslgen/rsl"
)

// Assets holds the prompt context shared by every generation call.
type Assets struct {
	Builtins []rsl.Builtin
	Examples []rsl.Rule
}

// LoadAssets reads the builtin catalog and rule examples per config.
func LoadAssets(cfg *Config) (Assets, error) {
	builtins, err := rsl.LoadBuiltins(cfg.BuiltinsPath)
	if err != nil {
		return Assets{}, err
	}
	examples, err := rsl.LoadExamples(cfg.ExamplesDir)
	if err != nil {
		return Assets{}, err
	}
	return Assets{Builtins: builtins, Examples: examples}, nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "No examples provided"
	}
	return s
}

func recordContext(rec Record) string {
	return fmt.Sprintf(`=== INSPECTION DATA ===
Framework: %s
Source: %s
Topic: %s
Issue Description: %s
Examples: %s`,
		rec.Framework, rec.Source, rec.Topic, rec.Description, orNone(rec.Examples))
}

// rulePrompt builds the rule-generation call: the grammar, catalog, and
// examples ride in the input; the row data and task in the instructions.
func rulePrompt(a Assets, rec Record) (instructions, input string) {
	input = fmt.Sprintf(`You are an expert in Java metadata bug detection using RSL (Rule Specification Language).
Generate an RSL rule to detect the metadata bug described below.

=== RSL CORE SYNTAX ===
%s

%s

%s`, rsl.Grammar, rsl.FormatBuiltins(a.Builtins), rsl.FormatExamples(a.Examples))

	instructions = fmt.Sprintf(`%s

=== TASK ===
Generate a syntactically correct RSL rule that:
1. Follows the given RSL syntax grammar exactly
2. Uses the listed RSL built-in functions ONLY, without introducing new built-in functions
3. Follows patterns from the existing rule examples semantically
4. Refers to the issue description and example code snippets, if any, semantically and syntactically
5. Adheres to each built-in function's signature, parameters, and return value
6. Supports the usage constraints described by the topic, issue description, and examples
7. If the rule grows too large, splits it into multiple independent RSL rules so each rule examines one metadata misuse pattern

Output ONLY the RSL rule code.`, recordContext(rec))
	return instructions, input
}

// descriptionPrompt builds the rule-explanation call.
func descriptionPrompt(rec Record, rule string) (instructions, input string) {
	input = fmt.Sprintf(`Explain this RSL rule for detecting metadata bugs in Java applications,
based on the framework, source, topic, issue description, and examples if any.

%s

RSL rule:
%s`, recordContext(rec), rule)

	instructions = `Provide the following information:
1. What constraints this rule detects, or each rule detects if there are multiple rules
2. How and which built-in functions are used per rule
3. The detection logic, step by step, per rule
4. Whether each rule addresses a bug that must be fixed, and for what reasons`
	return instructions, input
}

// searchPrompt builds the web-search call from the candidate queries.
func searchPrompt(rec Record, annotations, candidates []string, maxURLs int) string {
	if len(annotations) > 5 {
		annotations = annotations[:5]
	}
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}
	numbered := make([]string, 0, len(candidates))
	for i, q := range candidates {
		numbered = append(numbered, fmt.Sprintf("%d. %s", i+1, q))
	}

	return fmt.Sprintf(`Search the web for the most relevant documentation pages for this Java framework issue.

=== ISSUE ===
Framework: %s
Topic: %s
Description: %s
Annotations to find: %s

=== SEARCH QUERIES ===
%s

=== REQUIREMENTS ===
1. Find 3-5 relevant pages (we will validate and select top %d)
2. EXCLUDE all JetBrains URLs
3. PRIORITIZE: Official docs > Baeldung > Stack Overflow

Return URLs with brief descriptions.`,
		rec.Framework, rec.Topic, rec.Description,
		strings.Join(annotations, ", "), strings.Join(numbered, "\n"), maxURLs)
}

func evaluationContext(a Assets, rec Record, rule, description, webPages string) string {
	return fmt.Sprintf(`Evaluate this RSL rule:

=== INSPECTION DATA ===
Framework: %s
Topic: %s
Issue: %s

=== GENERATED RSL RULE ===
%s

=== RULE DESCRIPTION ===
%s

=== WEB RESOURCES ===
%s

=== EXISTING FUNCTION LIST ===
%s`,
		rec.Framework, rec.Topic, rec.Description,
		rule, description, webPages, rsl.FormatNames(a.Builtins))
}

// nonexistentPrompt builds the function-existence check.
func nonexistentPrompt(a Assets, rec Record, rule, description, webPages string) (instructions, input string) {
	input = evaluationContext(a, rec, rule, description, webPages) +
		"\n\nFrom the generated rule, list any non-existing function name."

	instructions = `You are an expert in metadata-related bugs in Java applications.
Check whether the rule uses only the valid built-in functions. Report any non-existing functions following these steps:
1. Extract the function names used in the generated rule.
2. Check whether each function name appears in the built-in function list.
3. If a function name is not in the list, report that name.`
	return instructions, input
}

// judgePrompt builds the correctness verdict call.
func judgePrompt(a Assets, rec Record, rule, description, webPages string) (instructions, input string) {
	input = evaluationContext(a, rec, rule, description, webPages)

	instructions = `You are an expert in metadata-related bugs in Java applications.
Validate the generated rule based on the framework, topic, issue description, and the given example.
If the rule is correct, submit 'Yes.' as the result. If the rule is incorrect, submit 'No' with a brief explanation.
1. Your validation result must not be influenced by any non-existing functions in the rule.
2. Indicate "Yes" or "No" first, judging the rule's correctness with respect to the given example.
3. If your answer is "No", briefly explain why the rule is incorrect.`
	return instructions, input
}

// fallbackJudgePrompt builds the secondary verdict call used when the
// primary judge fails; it swaps the web resources for the curated fallback
// pages.
func fallbackJudgePrompt(a Assets, rec Record, rule, description, fallbackPages string) (instructions, input string) {
	input = evaluationContext(a, rec, rule, description, fallbackPages)

	instructions = `You are an expert in metadata-related bugs in Java applications.
Validate the generated rule based on the topic, content, and the given example.
If the rule is correct, submit 'Yes.' as the result. If the rule is incorrect, submit 'No' with a brief explanation.
Your validation result must not be influenced by any non-existing functions in the rule.
Indicate "Yes" or "No" first, then report any non-existing function names, for example: example_new_function_name().`
	return instructions, input
}
