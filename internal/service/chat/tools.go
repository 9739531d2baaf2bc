package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

const searchTimeout = 10 * time.Second

func initTools(ctx context.Context) []tool.BaseTool {
	var tools []tool.BaseTool
	if ws := initWebSearch(ctx); ws != nil {
		tools = append(tools, ws)
	}
	return tools
}

// initWebSearch wires a combined search tool: Google CSE when credentials are
// present, DuckDuckGo as the keyless fallback.
func initWebSearch(ctx context.Context) tool.InvokableTool {
	googleTool := initGoogleSearch(ctx)
	duckTool := initDuckDuckGo(ctx)
	if googleTool == nil && duckTool == nil {
		log.Warn().Msg("web search tool disabled: no search providers available")
		return nil
	}

	ws := &webSearchTool{google: googleTool, duck: duckTool}
	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Search the web for up-to-date information; falls back to another provider if one fails.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Natural language query to search",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, ws.run)
}

type webSearchTool struct {
	google tool.InvokableTool
	duck   tool.InvokableTool
}

type webSearchParams struct {
	Query string `json:"query"`
}

func (w *webSearchTool) run(ctx context.Context, params *webSearchParams) (string, error) {
	if params == nil {
		return "", errors.New("missing search parameters")
	}
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return "", errors.New("query must not be empty")
	}

	payloadBytes, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}
	payload := string(payloadBytes)

	if w.google != nil {
		if result, err := w.google.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Warn().Err(err).Msg("google search failed")
		}
	}
	if w.duck != nil {
		if result, err := w.duck.InvokableRun(ctx, payload); err == nil {
			return result, nil
		} else {
			log.Warn().Err(err).Msg("duckduckgo search failed")
		}
	}
	return "", errors.New("no search provider succeeded")
}

func initDuckDuckGo(ctx context.Context) tool.InvokableTool {
	duckTool, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: 3,
		Region:     duckduckgo.RegionWT,
		Timeout:    searchTimeout,
	})
	if err != nil {
		log.Warn().Err(err).Msg("duckduckgo search tool disabled")
		return nil
	}
	return duckTool
}

func initGoogleSearch(ctx context.Context) tool.InvokableTool {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	engineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if apiKey == "" || engineID == "" {
		return nil
	}
	googleTool, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		ToolDesc:       "Google Search Tool",
		APIKey:         apiKey,
		SearchEngineID: engineID,
		Lang:           "en",
		Num:            5,
	})
	if err != nil {
		log.Warn().Err(err).Msg("google search tool disabled")
		return nil
	}
	return googleTool
}
