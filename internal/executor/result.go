package executor

// Path locates a field in the response tree. Elements are field response
// names (string) and list indices (int).
type Path []PathElement

type PathElement any

// GraphQLError is a located execution error.
type GraphQLError struct {
	Message string `json:"message"`
	Path    Path   `json:"path,omitempty"`
}

func (e GraphQLError) Error() string { return e.Message }

// ExecutionResult is the outcome of executing one operation. Data mirrors
// the requested selection shape; Errors carry everything that failed along
// the way, each scoped to its path.
type ExecutionResult struct {
	Data   any            `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}
