package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	// Knowledge source
	ErrCodeAmbiguous      ErrorCode = "AMBIGUOUS"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeNetworkTimeout ErrorCode = "NETWORK_TIMEOUT"

	// Inference engine
	ErrCodeModelLoadFailure ErrorCode = "MODEL_LOAD_FAILURE"

	// Voice channels
	ErrCodeUnintelligible      ErrorCode = "UNINTELLIGIBLE"
	ErrCodeServiceError        ErrorCode = "SERVICE_ERROR"
	ErrCodeUnsupportedLanguage ErrorCode = "UNSUPPORTED_LANGUAGE"
	ErrCodeSynthesisError      ErrorCode = "SYNTHESIS_ERROR"

	// Generic
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeUnknown      ErrorCode = "UNKNOWN"
)

// MetaCandidates is the metadata key holding the candidate titles of an AMBIGUOUS failure.
const MetaCandidates = "candidates"

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata sets a metadata entry and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// --- Knowledge source ---

func NewAmbiguousError(title string, candidates []string) *StandardError {
	if candidates == nil {
		candidates = []string{}
	}
	return &StandardError{
		Code:      ErrCodeAmbiguous,
		Message:   "Topic matches more than one page",
		Details:   fmt.Sprintf("title: %s", title),
		Retryable: false,
		Metadata:  map[string]interface{}{MetaCandidates: candidates},
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(title, language string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "No page matches the topic",
		Details:   fmt.Sprintf("title: %s, language: %s", title, language),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewNetworkTimeoutError(service string, err error) *StandardError {
	details := service
	if err != nil {
		details = fmt.Sprintf("%s: %s", service, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeNetworkTimeout,
		Message:   "Knowledge service did not respond in time",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewUnknownError(detail string, err error) *StandardError {
	if err != nil {
		detail = fmt.Sprintf("%s: %s", detail, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeUnknown,
		Message:   "Unexpected failure",
		Details:   detail,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// --- Inference engine ---

func NewModelLoadFailureError(backend string, err error) *StandardError {
	details := fmt.Sprintf("backend: %s", backend)
	if err != nil {
		details = fmt.Sprintf("backend: %s, error: %s", backend, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeModelLoadFailure,
		Message:   "Inference model could not be loaded",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// --- Voice channels ---

func NewUnintelligibleError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnintelligible,
		Message:   "Speech could not be understood",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewServiceError(service string, err error) *StandardError {
	details := service
	if err != nil {
		details = fmt.Sprintf("%s: %s", service, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeServiceError,
		Message:   "Speech service is unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewUnsupportedLanguageError(languageCode string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedLanguage,
		Message:   "Language is not supported for speech",
		Details:   fmt.Sprintf("language: %s", languageCode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSynthesisError(details string, err error) *StandardError {
	if err != nil {
		details = fmt.Sprintf("%s: %s", details, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeSynthesisError,
		Message:   "Speech synthesis failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// --- Inspection ---

// AsStandard unwraps err to the first StandardError in its chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or ErrCodeUnknown.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeUnknown
}

func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// Candidates returns the candidate titles attached to an AMBIGUOUS failure.
func Candidates(err error) []string {
	stdErr, ok := AsStandard(err)
	if !ok || stdErr.Code != ErrCodeAmbiguous {
		return nil
	}
	candidates, _ := stdErr.Metadata[MetaCandidates].([]string)
	return candidates
}

// UserMessage returns the text shown to a person for a failure kind.
func UserMessage(code ErrorCode) string {
	switch code {
	case ErrCodeAmbiguous:
		return "That topic could mean several things. Please be more specific."
	case ErrCodeNotFound:
		return "No page was found for that topic. Check the spelling or try another topic."
	case ErrCodeNetworkTimeout:
		return "The knowledge service took too long to respond. Please try again."
	case ErrCodeModelLoadFailure:
		return "The answering model is not available right now. Please try again shortly."
	case ErrCodeUnintelligible:
		return "Sorry, I could not understand the audio. Please speak clearly and try again."
	case ErrCodeServiceError:
		return "The speech service is unavailable. Please type your question instead."
	case ErrCodeUnsupportedLanguage:
		return "Speech is not available for the selected language."
	case ErrCodeSynthesisError:
		return "The answer could not be read aloud."
	case ErrCodeInvalidInput:
		return "The request was incomplete or malformed."
	default:
		return "Something went wrong."
	}
}

// Describe returns the text shown to a person for err. UNKNOWN failures surface their detail
// verbatim; every other kind gets its UserMessage.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	stdErr, ok := AsStandard(err)
	if !ok {
		return err.Error()
	}
	if stdErr.Code == ErrCodeUnknown && stdErr.Details != "" {
		return stdErr.Details
	}
	return UserMessage(stdErr.Code)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeAmbiguous:           "TOPIC_AMBIGUOUS",
	ErrCodeNotFound:            "TOPIC_NOT_FOUND",
	ErrCodeNetworkTimeout:      "KNOWLEDGE_TIMEOUT",
	ErrCodeModelLoadFailure:    "MODEL_LOAD_FAILURE",
	ErrCodeUnintelligible:      "SPEECH_UNINTELLIGIBLE",
	ErrCodeServiceError:        "SPEECH_SERVICE_ERROR",
	ErrCodeUnsupportedLanguage: "UNSUPPORTED_LANGUAGE",
	ErrCodeSynthesisError:      "SYNTHESIS_ERROR",
	ErrCodeInvalidInput:        "INVALID_INPUT",
	ErrCodeUnknown:             "UNKNOWN_ERROR",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeServiceError:
		return 3
	case ErrCodeModelLoadFailure:
		return 2
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"userMessage":       Describe(stdErr),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if candidates, ok := stdErr.Metadata[MetaCandidates]; ok {
		vars[MetaCandidates] = candidates
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeAmbiguous || code == ErrCodeNotFound || code == ErrCodeNetworkTimeout:
		return "KNOWLEDGE"
	case strings.Contains(codeStr, "MODEL"):
		return "INFERENCE"
	case code == ErrCodeUnintelligible || code == ErrCodeServiceError ||
		code == ErrCodeUnsupportedLanguage || code == ErrCodeSynthesisError:
		return "VOICE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
