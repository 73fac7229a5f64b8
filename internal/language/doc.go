// Package language normalizes target-language input and maps codes to
// display names.
//
// The backend dubs into a fixed set of targets. Input may be a backend code
// ("zh-CN"), any BCP 47 tag resolving to one of them ("es-MX", "zh-Hans"),
// an ISO 639-2 code ("spa", "ger"), or an English word ("spanish").
package language
