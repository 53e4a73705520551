package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIClient calls the OpenAI Chat Completions API.
type OpenAIClient struct {
	model  openai.ChatModel
	client *openai.Client
}

const (
	// Section chunks run to tens of thousands of characters, so these
	// timeouts are generous compared to ordinary chat calls.
	defaultSectionTimeout   = 2 * time.Minute
	defaultSynthesisTimeout = 3 * time.Minute
	defaultTemperature      = 0.3
)

const sectionSystemPrompt = `You are an expert at summarizing sections of large documents.
Your summaries should be:
- Dense with information but readable
- Focused on key facts, figures, dates, and entities
- Coherent and well-structured
- Maximum 500 words`

const synthesisSystemPrompt = `You are an expert at synthesizing multiple summaries into a coherent executive summary.

Your task is to:
1. Read all section summaries carefully
2. Identify main themes and key information
3. Resolve any redundancies across sections
4. Create a well-structured final summary that flows naturally
5. Maintain all critical facts, figures, and dates
6. Ensure the summary is complete but concise (maximum 2000 words)`

// NewOpenAIClient builds a client with defaults against api.openai.com.
func NewOpenAIClient(apiKey string, model openai.ChatModel) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIClient{
		model:  model,
		client: &cli,
	}, nil
}

func (c *OpenAIClient) SummarizeSection(ctx context.Context, section Section) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultSectionTimeout)
	defer cancel()
	return c.complete(reqCtx, sectionSystemPrompt, sectionPrompt(section))
}

func (c *OpenAIClient) Synthesize(ctx context.Context, synthesis Synthesis) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultSynthesisTimeout)
	defer cancel()
	return c.complete(reqCtx, synthesisSystemPrompt, synthesisPrompt(synthesis))
}

func (c *OpenAIClient) complete(ctx context.Context, system, user string) (string, error) {
	if c == nil || c.client == nil {
		return "", fmt.Errorf("nil openai client")
	}
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    buildMessages(system, user),
		Temperature: openai.Float(defaultTemperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// sectionPrompt renders the map-stage user message. Section indexes are shown
// 1-based for readability.
func sectionPrompt(s Section) string {
	pageRange := s.PageRange
	if pageRange == "" {
		pageRange = "Unknown"
	}
	return fmt.Sprintf(`Summarize the following section of a large document.

SECTION CONTEXT:
- Section %d of %d
- Page range: %s
- Approximate length: %d characters

SECTION TEXT:
%s

Provide a concise but comprehensive summary.`,
		s.Index+1, s.Total, pageRange, s.CharCount, s.Text)
}

// synthesisPrompt concatenates section summaries with section labels and
// renders the reduce-stage user message.
func synthesisPrompt(s Synthesis) string {
	labeled := make([]string, 0, len(s.SectionSummaries))
	for i, summary := range s.SectionSummaries {
		labeled = append(labeled, fmt.Sprintf("SECTION %d SUMMARY:\n%s", i+1, summary))
	}
	concatenated := strings.Join(labeled, "\n\n---\n\n")

	title := s.Title
	if title == "" {
		title = "Unknown Document"
	}
	return fmt.Sprintf(`Synthesize the following section summaries into a final executive summary.

DOCUMENT METADATA:
- Title: %s
- Total Pages: %d
- Number of Sections: %d

SECTION SUMMARIES:
%s

Create a comprehensive executive summary that captures the essence of this %d-page document.`,
		title, s.PageCount, len(s.SectionSummaries), concatenated, s.PageCount)
}

func buildMessages(system, user string) []openai.ChatCompletionMessageParamUnion {
	return []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(system),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: openai.String(user),
				},
			},
		},
	}
}
