// Package openaicompat provides the shared Chat Completions envelope for
// OpenAI-compatible vendors.
//
// openai, openrouter, zai and ollama speak the same wire format. Instead of
// duplicating request building, auth and response decoding in each package,
// they construct an openaicompat.Provider and only declare what differs:
//
//   - the vendor Descriptor (default base URL, model, auth scheme, detail support)
//   - the endpoint path
//   - extra headers
//
// Usage:
//
//	p := openaicompat.New(openaicompat.Config{
//	    Config:       providers.Config{APIKey: key},
//	    Descriptor:   zai.Descriptor(),
//	    EndpointPath: "/chat/completions",
//	})
package openaicompat
