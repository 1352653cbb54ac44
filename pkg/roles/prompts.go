package roles

// Prompt templates for the three ACE roles. Wording is deliberately plain:
// each role must return a single JSON object so downstream parsing stays
// mechanical.

const generatorPromptTemplate = `You are solving a task. You have access to a playbook of strategies
learned from previous attempts. Apply any strategies that are relevant,
and cite them by their bracketed id (for example [general-00001]) in your
reasoning.

%s
Question:
%s

Respond with a single JSON object:
{"reasoning": "<step by step reasoning, citing playbook bullets by id>", "answer": "<final answer>"}`

const generatorPlaybookHeader = `Playbook:
`

const reflectorPromptTemplate = `You are reviewing an attempt at a task. Diagnose what went right or
wrong by comparing the answer against the ground truth and the
environment feedback.

Question:
%s

Attempted answer:
%s

Reasoning behind the attempt:
%s

Ground truth:
%s

Environment feedback:
%s

Playbook bullets cited during the attempt: %s

Respond with a single JSON object:
{
  "error_identification": "<what went wrong, or 'none' if correct>",
  "root_cause": "<why it went wrong, or 'none'>",
  "insight": "<one transferable lesson from this attempt>",
  "bullet_tags": [{"bullet_id": "<cited bullet id>", "tag": "helpful" or "harmful"}]
}`

const curatorPromptTemplate = `You maintain a playbook of strategy bullets. Based on the reflection
below, propose a small set of edits to the playbook. Prefer tagging and
updating existing bullets over adding near-duplicates. Only reference
bullet ids that appear in the current playbook.

Reflection:
%s

Current playbook:
%s

Available operations:
- {"type": "ADD", "section": "<section>", "content": "<new strategy>"}
- {"type": "TAG", "bullet_id": "<id>", "tag": "helpful" or "harmful"}
- {"type": "UPDATE", "bullet_id": "<id>", "content": "<revised strategy>"}
- {"type": "REMOVE", "bullet_id": "<id>"}

Respond with a single JSON object:
{"reasoning": "<why these edits>", "operations": [<at most %d operations>]}`
