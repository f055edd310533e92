// Package provider normalises the OpenAI, Anthropic and Google completion APIs
// into one call: a system prompt and a user prompt in, answer text out.
//
// Each vendor is a dialect over a shared HTTP client. The dialect owns the
// endpoint, the auth header, the request body and the JSON path of the answer.
// The shared client handles base URL selection, status classification and
// step-by-step answer extraction.
//
// Every failure is a *Error: non-2xx statuses carry the vendor's error.message
// when present, bodies that do not match the expected shape carry a message
// starting with "unexpected response shape", and transport failures have
// Status 0. There are no retries.
package provider
