package ai

const JourneySystemPrompt = `You are an assistant for nonprofit fundraising teams. You model donor relationships as journeys: a directed graph of stages a donor moves through. You answer only in the requested JSON format.`

const JourneyPrompt = `
# Task Context
You turn an organization's own description of its donor journey into a directed graph of stages and transitions.

# Background Data
%s

# Detailed Task Description & Rules
- Every stage is a node with a short unique "id" (e.g. "n1", "n2"), a unique human readable "label" and "properties".
- properties.description explains what it means for a donor to be in this stage.
- properties.actions lists typical actions staff take while a donor is in this stage (may be empty).
- Every transition is an edge with a unique "id" (e.g. "e1"), a "source" and a "target" stage id, an UPPER_SNAKE_CASE "label" and properties.description explaining when the move happens.
- Only reference stage ids that exist in "nodes". Do not invent stages that the description does not imply.
- Keep the order of "nodes" aligned with the order of the journey.
- Labels are case sensitive and must not repeat.

# Examples
Description: "We meet people at events, follow up by email and then try to get a meeting."
Output:
{
  "nodes": [
    {"id": "n1", "label": "Initial Contact", "properties": {"description": "Met at an event", "actions": ["Send thank you email"]}},
    {"id": "n2", "label": "Follow Up", "properties": {"description": "Received a follow up email", "actions": ["Call donor"]}},
    {"id": "n3", "label": "Meeting", "properties": {"description": "Meeting scheduled or held", "actions": []}}
  ],
  "edges": [
    {"id": "e1", "source": "n1", "target": "n2", "label": "FOLLOW_UP", "properties": {"description": "Staff followed up"}},
    {"id": "e2", "source": "n2", "target": "n3", "label": "SCHEDULE_MEETING", "properties": {"description": "Donor agreed to meet"}}
  ]
}

# Immediate Task Description or Request
Return the complete journey graph for the description above.
`

const ClassificationSystemPrompt = `You classify donors into exactly one stage of a donor journey. You reply with a single JSON object and nothing else.`

const ClassificationPrompt = `
# Task Context
A donor has never been placed in the organization's donor journey. Pick the single stage that best describes where the donor is right now.

# Background Data
## Donor
%s

## Stages
%s

## Communication history (most recent first)
%s

## Donation history (most recent first)
%s

# Detailed Task Description & Rules
- Choose exactly one stage from the list above and answer with its id, never its label.
- Base the decision on the evidence. If there is little evidence, pick the earliest stage that still fits.
- Explain the decision in one or two sentences.

# Output Formatting
{"stageId": "<id of the chosen stage>", "reasoning": "<short explanation>"}
`

const TransitionSystemPrompt = `You decide whether a donor has progressed in a donor journey. You reply with a single JSON object and nothing else.`

const TransitionPrompt = `
# Task Context
A donor is currently in the stage "%s" (id %s) of the organization's donor journey. Decide whether the evidence justifies moving the donor along one of the transitions below.

# Background Data
## Donor
%s

## Current stage
%s

## Possible transitions
%s

## Communication history (most recent first)
%s

## Donation history (most recent first)
%s

# Detailed Task Description & Rules
- You may only choose a target stage listed under "Possible transitions".
- If the evidence does not clearly satisfy a transition, the donor stays where they are.
- Explain the decision in one or two sentences.

# Output Formatting
{"canTransition": <true|false>, "nextStageId": "<target stage id or null>", "reasoning": "<short explanation>"}
`

const PredictionSystemPrompt = `You are a fundraising assistant. You recommend concrete next steps for staff to take with a donor.`

const PredictionPrompt = `
# Task Context
Recommend the next actions the organization should take with this donor given the donor's current journey stage.

# Background Data
## Donor
%s

## Current stage
%s

## Possible next stages
%s

## Communication history (most recent first)
%s

## Donation history (most recent first)
%s

## Today
%s

# Detailed Task Description & Rules
- Suggest between zero and five actions. Return an empty list when nothing should be done right now.
- "type" is a short lowercase category such as "email", "call", "meeting", "thank_you" or "task".
- "description" is a one line summary shown as the to-do title.
- "explanation" says why the action helps move the donor forward.
- "instruction" tells staff exactly what to do or say.
- "scheduledDate" is the date the action should happen (YYYY-MM-DD) or an empty string.
- Prefer the typical actions of the current stage when they fit the evidence.
- Never repeat an action the communication history shows was already done.
`
