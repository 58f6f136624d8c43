package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const webSearchTimeout = 10 * time.Second

// searchTools builds the web search tool set for agent graphs. Google search
// is only available when its credentials are present; DuckDuckGo needs none.
func searchTools(maxResults int) []tool.BaseTool {
	if maxResults <= 0 {
		maxResults = 3
	}
	var tools []tool.BaseTool

	duckTool, err := duckduckgo.NewTextSearchTool(context.Background(), &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		ToolDesc:   "DuckDuckGo Search Tool (no token required)",
		MaxResults: maxResults,
		Region:     duckduckgo.RegionWT,
		Timeout:    webSearchTimeout,
	})
	if err != nil {
		log.Printf("duckduckgo search tool disabled: %v", err)
	} else {
		tools = append(tools, duckTool)
	}

	googleAPIKey := os.Getenv("GOOGLE_API_KEY")
	googleSearchEngineID := os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	if googleAPIKey != "" && googleSearchEngineID != "" {
		googleTool, err := googlesearch.NewTool(context.Background(), &googlesearch.Config{
			ToolName:       "web_search_google",
			ToolDesc:       "Google Search Tool",
			APIKey:         googleAPIKey,
			SearchEngineID: googleSearchEngineID,
			Lang:           "en",
			Num:            maxResults,
		})
		if err != nil {
			log.Printf("google search tool disabled: %v", err)
		} else {
			tools = append(tools, googleTool)
		}
	}
	return tools
}

// attachment reader tool

const (
	attachmentChunkDefault = 2000
	attachmentChunkMax     = 4000
)

type attachmentReader struct {
	loader *file.FileLoader
	path   string
}

type attachmentParams struct {
	ChunkIndex int `json:"chunk_index,omitempty"`
	ChunkSize  int `json:"chunk_size,omitempty"`
}

// attachmentTool exposes the request's uploaded file to the agent. Returns
// nil when the reference is not a readable local path (object-store URLs are
// handed to the graph as plain context instead).
func attachmentTool(path string) tool.InvokableTool {
	if path == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		log.Printf("attachment reader disabled: %v", err)
		return nil
	}
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		log.Printf("attachment reader disabled: %v", err)
		return nil
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		log.Printf("attachment reader disabled: %v", err)
		return nil
	}
	reader := &attachmentReader{loader: loader, path: path}

	info := &schema.ToolInfo{
		Name: "read_attachment",
		Desc: "Read the file the user attached to this conversation, in chunks. " +
			"Optional chunk_index and chunk_size select a segment.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"chunk_index": {
				Desc:     "Zero-based chunk index to read, default 0.",
				Type:     schema.Integer,
				Required: false,
			},
			"chunk_size": {
				Desc:     "Number of characters per chunk (max 4000, default 2000).",
				Type:     schema.Integer,
				Required: false,
			},
		}),
	}
	return utils.NewTool(info, reader.run)
}

func (t *attachmentReader) run(ctx context.Context, params *attachmentParams) (string, error) {
	docs, err := t.loader.Load(ctx, document.Source{URI: t.path})
	if err != nil {
		return "", fmt.Errorf("load attachment: %w", err)
	}
	if len(docs) == 0 {
		return "", errors.New("attachment is empty")
	}
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(doc.Content)
	}

	chunkSize := attachmentChunkDefault
	chunkIndex := 0
	if params != nil {
		if params.ChunkSize > 0 {
			chunkSize = params.ChunkSize
		}
		if params.ChunkIndex > 0 {
			chunkIndex = params.ChunkIndex
		}
	}
	if chunkSize > attachmentChunkMax {
		chunkSize = attachmentChunkMax
	}

	runes := []rune(sb.String())
	totalChunks := (len(runes) + chunkSize - 1) / chunkSize
	if totalChunks == 0 {
		totalChunks = 1
	}
	if chunkIndex >= totalChunks {
		return "", fmt.Errorf("chunk_index %d out of range, file has %d chunks", chunkIndex, totalChunks)
	}
	start := chunkIndex * chunkSize
	end := start + chunkSize
	if end > len(runes) {
		end = len(runes)
	}
	return fmt.Sprintf("File: %s\nChunk %d/%d\n\n%s", t.path, chunkIndex+1, totalChunks, string(runes[start:end])), nil
}
