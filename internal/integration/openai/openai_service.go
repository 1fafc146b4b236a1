package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commands the agent may choose
const (
	CommandListBatches      = "ListBatches"
	CommandGetBatchInsights = "GetBatchInsights"
	CommandCompareBatches   = "CompareBatches"
	CommandGeneralQuery     = "GeneralQuery"
)

// AgentResponse defines the structured output from the OpenAI agent.
type AgentResponse struct {
	CommandName string  `json:"command_name" jsonschema_description:"One of ListBatches, GetBatchInsights, CompareBatches or GeneralQuery"`
	BatchIDs    []int64 `json:"batch_ids" jsonschema_description:"Batch numbers the user referred to, in the order mentioned; empty when none"`
	UserMessage string  `json:"user_message" jsonschema_description:"A short message to show back to the user in their original language"`
}

// OpenAIService defines the interface for interacting with the OpenAI agent.
type OpenAIService interface {
	InterpretUserQuery(ctx context.Context, userMessage string, knownBatches []int64) (*AgentResponse, error)
}

// openAIServiceImpl implements the OpenAIService interface.
type openAIServiceImpl struct {
	client openai.Client
	schema interface{}
	model  openai.ChatModel
}

// GenerateSchema generates a JSON schema for a given type.
func GenerateSchema[T any]() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// NewOpenAIService creates and initializes a new OpenAIService.
func NewOpenAIService(apiKey, model string) (OpenAIService, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key not set")
	}
	chatModel := openai.ChatModel(model)
	if model == "" {
		chatModel = openai.ChatModelGPT4o
	}
	return &openAIServiceImpl{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		schema: GenerateSchema[AgentResponse](),
		model:  chatModel,
	}, nil
}

func systemPrompt(knownBatches []int64) string {
	ids := make([]string, len(knownBatches))
	for i, id := range knownBatches {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf(`You are the assistant of a small oyster mushroom farm. Growers ask you about their
cultivation batches: how a batch is doing, how two batches compare, or which batches exist.

Known batch numbers: %s

Behavior:
1. The user wants to know how one batch is doing:
   - command_name = "GetBatchInsights", batch_ids = [that batch].
2. The user wants two or more batches compared:
   - command_name = "CompareBatches", batch_ids = the batches in the order mentioned.
3. The user wants to see the batches:
   - command_name = "ListBatches", batch_ids = [].
4. Anything else (greetings, small talk, general growing questions):
   - command_name = "GeneralQuery", batch_ids = [], and answer briefly in user_message.

Only use batch numbers from the list. Reply in the language the user wrote in.
Output strictly in JSON.`, strings.Join(ids, ", "))
}

// InterpretUserQuery sends a message to the OpenAI agent and returns the structured response.
func (s *openAIServiceImpl) InterpretUserQuery(ctx context.Context, userMessage string, knownBatches []int64) (*AgentResponse, error) {
	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "agent_response",
		Description: openai.String("Structured response containing command, batch numbers and user message"),
		Schema:      s.schema,
		Strict:      openai.Bool(true),
	}

	chat, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(knownBatches)),
			openai.UserMessage(userMessage),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: schemaParam},
		},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("error calling OpenAI API: %w", err)
	}

	if len(chat.Choices) == 0 || chat.Choices[0].Message.Content == "" {
		return nil, errors.New("received empty response from OpenAI")
	}
	return ParseAgentResponse(chat.Choices[0].Message.Content)
}

// ParseAgentResponse decodes the agent's JSON answer.
func ParseAgentResponse(content string) (*AgentResponse, error) {
	var agentResp AgentResponse
	if err := json.Unmarshal([]byte(content), &agentResp); err != nil {
		log.Printf("Failed to unmarshal OpenAI response: %s\nRaw response: %s", err, content)
		return nil, fmt.Errorf("error unmarshalling OpenAI response: %w", err)
	}
	return &agentResp, nil
}
