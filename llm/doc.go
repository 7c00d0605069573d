// Package llm provides a provider-neutral chat-completion client for Large Language Model (LLM) APIs.
//
// The package sends a single-turn user prompt, optionally with tool definitions, to one of
// several providers (Anthropic, Ollama, OpenAI) and normalizes the different success and
// error bodies into one stable in-memory model.
//
// # Core Concepts
//
//  1. Providers: Provider is a closed set of tags. Each tag selects a request path, a
//     max_tokens rule, an error envelope, and a response decoder from a lookup table.
//
//  2. Tools: ToolDefinition holds the neutral fields of a callable function. The wire
//     shape is produced per provider by a ToolShape registered with RegisterToolShape,
//     so a new provider shape never requires changes to ToolDefinition.
//
//  3. Transport: the Transport interface is the only I/O boundary. It posts a JSON body
//     to a path and returns the status code, headers, and raw body. See the transport
//     package for the HTTP implementation and llm/anthropic for an SDK-backed one.
//
//  4. Content: NormalizeContent turns a content field (a string, an array of transcript
//     turns, or an array of typed blocks) into an ordered []ContentItem. Unrecognized
//     items are kept byte-for-byte as ContentKindUnknown.
//
//  5. Errors: a call fails with exactly one of *TransportError, *APIError, or
//     *MalformedResponseError. Nothing is retried inside this package.
//
// Usage Example
//
//	client, err := llm.NewChatClient(llm.ClientConfig{
//	    Provider: llm.ProviderAnthropic,
//	    APIKey:   apiKey,
//	}, httpTransport, logger)
//
//	weather, _ := llm.NewToolDefinition("get_current_weather", "Get the weather", schema)
//	resp, err := client.Chat(ctx, "What's the weather in Paris?", llm.WithTools(weather))
//
//	var apiErr *llm.APIError
//	if errors.As(err, &apiErr) {
//	    fmt.Println(apiErr.Response.ErrorType)
//	}
//
// # Extension Points
//
// To add a tool shape for a new provider tag, call RegisterToolShape with an Encode and
// Decode pair. To add cross-cutting behaviour around calls, implement Middleware and use
// WrapWithMiddleware.
package llm
