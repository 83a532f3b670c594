package evaluation

import (
	"encoding/json"
	"fmt"
)

func buildGroundTruthPrompt(question, groundTruth, generated string) string {
	return fmt.Sprintf(`You are an AI assistant evaluating the correctness of answers. The 'correctness metric' is a measure of if the generated answer to a given User Question is correct based on the ground truth answer.
You will be given the generated answer and the ground truth answer.

You need to compare the generated answer against the ground truth answer and score the answer between one to five using the following rating scale:
One: The answer is incorrect
Three: The answer is partially correct, but could be missing some key context or nuance that makes it potentially misleading or incomplete compared to the ground truth answer provided.
Five: The answer is correct and complete based on the ground truth answer provided.

You must also provide your reasoning as to why the rating you selected was given.

The rating value should always be either 1, 3, or 5.

You will add your thoughts, rating, and ground truth answer into the thoughts JSON and return the JSON as the response along with the ground truth answer.

User Question: %s
Ground truth answer: %s
Generated answer: %s`, question, groundTruth, generated)
}

func buildProductionPrompt(question, generated, document string) string {
	return fmt.Sprintf(`You are an AI assistant evaluating the correctness of answers in a production environment. The 'correctness metric' is a measure of if the generated answer to a given User Question is correct based on the Knowledge Base Document.

You need to compare the generated answer against the knowledge base document and score the answer between one to five using the following rating scale:
One: The answer is incorrect
Three: The answer is partially correct, but could be missing some key context or nuance that makes it potentially misleading or incomplete compared to the knowledge base document provided.
Five: The answer is correct and complete based on the knowledge base document provided.

You must also provide your reasoning as to why the rating you selected was given.

The rating value should always be either 1, 3, or 5.

You will add your thoughts, rating, and knowledge base document into the thoughts JSON and return the JSON as the response.

User Question: %s
Generated answer: %s
Knowledge Base Document: %s`, question, generated, document)
}

var groundTruthSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "user_question": {"type": "string"},
    "generated_answer": {"type": "string"},
    "rating": {"type": "integer", "enum": [1, 3, 5]},
    "thoughts": {"type": "string"},
    "ground_truth_answer": {"type": "string"}
  },
  "required": ["user_question", "generated_answer", "rating", "thoughts", "ground_truth_answer"],
  "additionalProperties": false
}`)

var productionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "user_question": {"type": "string"},
    "generated_answer": {"type": "string"},
    "rating": {"type": "integer", "enum": [1, 3, 5]},
    "thoughts": {"type": "string"},
    "knowledge_base_document": {"type": "string"}
  },
  "required": ["user_question", "generated_answer", "rating", "thoughts", "knowledge_base_document"],
  "additionalProperties": false
}`)
