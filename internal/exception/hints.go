package exception

// hintsByCompositeKey covers well-known type+error-code combinations
// where a single, specific hint is far more useful than the generic
// type- or category-level fallback.
var hintsByCompositeKey = map[string]string{
	"SqlException:18456": "login failed — verify credentials",
	"SqlException:53":    "SQL Server not found or not accessible — verify network path and firewall rules",
	"SqlException:2":     "could not open a connection — verify the server name and that the server is running",
}

var hintsByType = map[string]string{
	"SocketException":           "connection refused or host unreachable — verify the target address and that the service is listening",
	"HttpRequestException":      "HTTP request failed — check the endpoint URL and network connectivity",
	"TimeoutException":          "operation exceeded its allotted time — consider increasing the timeout or investigating a slow dependency",
	"FileNotFoundException":     "referenced file does not exist — verify the path and deployment layout",
	"ArgumentNullException":     "a required argument was null — check the caller for a missing value",
	"UnauthorizedAccessException": "the process lacks permission for this resource — check file/credential permissions",
}

var hintsByCategory = map[Category]string{
	CategoryNetwork:       "a network call failed — check connectivity, DNS, and firewall rules",
	CategoryDatabase:      "a database operation failed — check connection string, credentials, and server availability",
	CategoryAuthn:         "an authentication or authorization check failed — verify credentials and permissions",
	CategoryValidation:    "input failed validation — check the value against the expected format",
	CategoryTimeout:       "an operation timed out — check for a slow or unresponsive dependency",
	CategoryFileSystem:    "a file-system operation failed — verify the path exists and is accessible",
	CategoryConfiguration: "a configuration value is missing or invalid — check application settings",
	CategoryNullReference: "a null value was dereferenced — check for a missing initialization",
	CategoryArgument:      "an argument was invalid — check the call site",
	CategoryUnknown:       "",
}

// Hint composes the actionable hint: composite key first, then a
// type-based lookup, then the category-based fallback. It never
// fabricates text outside this fixed table.
func Hint(typeName, errorCode string, category Category) string {
	last := lastSegment(typeName)

	if errorCode != "" {
		if hint, ok := hintsByCompositeKey[last+":"+errorCode]; ok {
			return hint
		}
	}
	if hint, ok := hintsByType[last]; ok {
		return hint
	}
	return hintsByCategory[category]
}
