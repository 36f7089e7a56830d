package generativeAI

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Nexoracode/khadamat/internal/api"
	"github.com/Nexoracode/khadamat/internal/types"
)

const (
	FallbackText     = "متأسفانه در حال حاضر مشکلی در پردازش درخواست شما پیش آمده است. لطفاً دوباره تلاش کنید."
	FallbackSolution = "مشکلی در تولید صوت پیش آمد."
)

// FallbackReply is what the user sees whenever the model cannot be used.
func FallbackReply() types.AIReply {
	return types.AIReply{
		Text:               FallbackText,
		Solution:           FallbackSolution,
		RecommendationType: types.RecommendationNone,
	}
}

func getAssistantInstruction(specialists []types.Specialist, products []types.Product) string {
	specialistsJSON, err := json.Marshal(specialists)
	if err != nil {
		specialistsJSON = []byte("[]")
	}
	productsJSON, err := json.Marshal(products)
	if err != nil {
		productsJSON = []byte("[]")
	}
	return fmt.Sprintf(`
    You are the intelligent assistant for 'Hamrah Services' (خدمات همراه).
    Your slogan is 'درخواست از شما، خدمت از ما'.
    Your goal is to help users who recently moved to a new area with their home repairs.

    Data Available:
    Specialists: %s
    Products: %s

    Rules:
    1. Always respond in Persian (Farsi).
    2. Analyze the user's problem.
    3. If it's a simple fix, provide a DIY step-by-step guide (the "solution") and recommend a relevant Product ID from the list if helpful.
    4. If the problem is technical or dangerous (like electrical work), strongly recommend a Specialist ID from the list.
    5. Return a JSON response.

    Response format:
    {
      "text": "Your full friendly response in Persian...",
      "solution": "Only the specific DIY steps or the core solution/advice part. This will be converted to voice. Keep it concise but helpful.",
      "recommendationType": "specialist" | "product" | "none",
      "recommendationId": "id_here"
    }`, specialistsJSON, productsJSON)
}

func replySchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":     {Type: genai.TypeString},
			"solution": {Type: genai.TypeString},
			"recommendationType": {
				Type: genai.TypeString,
				Enum: []string{
					string(types.RecommendationSpecialist),
					string(types.RecommendationProduct),
					string(types.RecommendationNone),
				},
			},
			"recommendationId": {Type: genai.TypeString},
		},
		Required: []string{"text", "solution", "recommendationType"},
	}
}

// buildContents maps the transcript onto Gemini turns and appends the new
// user turn. Leading model turns (the greeting) are dropped so the request
// always opens with the user.
func buildContents(history []types.ConversationMessage, utterance string, audio *types.AudioInput) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		if len(contents) == 0 && msg.Role != types.RoleUser {
			continue
		}
		role := "user"
		if msg.Role == types.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Text}},
		})
	}

	parts := make([]*genai.Part, 0, 2)
	if strings.TrimSpace(utterance) != "" {
		parts = append(parts, &genai.Part{Text: utterance})
	}
	if audio != nil && len(audio.Data) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{Data: audio.Data, MIMEType: audio.MIMEType}})
	}
	return append(contents, &genai.Content{Role: "user", Parts: parts})
}

// cleanJSONResponse strips markdown fences and any prose around the JSON
// object.
func cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
	}
	response = strings.TrimSpace(strings.TrimSuffix(response, "```"))

	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first == -1 || last <= first {
		return response
	}
	return response[first : last+1]
}

// parseReply decodes and validates the model output.
func parseReply(raw string) (types.AIReply, error) {
	var reply types.AIReply
	cleaned := cleanJSONResponse(raw)
	if cleaned == "" {
		return reply, fmt.Errorf("empty response from model")
	}
	if err := json.Unmarshal([]byte(cleaned), &reply); err != nil {
		return reply, fmt.Errorf("failed to decode model reply: %w", err)
	}
	if err := api.ValidateStruct(reply); err != nil {
		return reply, fmt.Errorf("model reply rejected: %w", err)
	}
	if reply.RecommendationType == types.RecommendationNone {
		reply.RecommendationID = ""
	}
	return reply, nil
}
