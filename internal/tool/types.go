package tool

// Descriptor is the advertised metadata of one remote tool. Tools are never
// executed locally; tools/call is always forwarded.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Resource describes a readable MCP resource
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

const (
	AddSteps       = "add_steps"
	GetSteps       = "get_steps"
	GetUserProfile = "get_user_profile"

	ProfileURI     = "step-challenge://profile"
	RecentStepsURI = "step-challenge://steps/recent"
)

const datePattern = `^\d{4}-\d{2}-\d{2}$`

// Default returns a registry holding the Step Challenge tools
func Default() *Registry {
	r := NewRegistry()
	for _, d := range stepTools() {
		r.Register(d)
	}
	return r
}

func stepTools() []Descriptor {
	return []Descriptor{
		{
			Name: AddSteps,
			Description: "Record daily step count for fitness tracking. Use this when user wants to log their steps for a specific date. " +
				"CRITICAL SAFETY: Never automatically overwrite existing data. If data exists, show user the conflict and ask for " +
				"explicit confirmation before using allow_overwrite=true. Authentication via Authorization header.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"date": map[string]any{
						"type":    "string",
						"pattern": datePattern,
						"description": "Target date for step count in YYYY-MM-DD format ONLY. Examples: \"2025-07-30\", \"2025-12-25\". " +
							"NEVER use \"today\" - always convert to actual date like \"2025-07-30\".",
					},
					"count": map[string]any{
						"type":        "number",
						"minimum":     0,
						"maximum":     70000,
						"description": "Number of steps taken (0-70,000). Typical daily counts: sedentary 2000-5000, active 7500-10000, very active 10000+",
					},
					"allow_overwrite": map[string]any{
						"type":        "boolean",
						"default":     false,
						"description": "DANGER: Only set to true after explicit user confirmation. NEVER set this automatically. User must explicitly agree to overwrite their existing data.",
					},
				},
				"required": []string{"date", "count"},
			},
		},
		{
			Name: GetSteps,
			Description: "Retrieve step history and progress data. Use this to show user their step counts, analyze trends, " +
				"check goal progress, or generate reports. Authentication via Authorization header.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"start_date": map[string]any{
						"type":        "string",
						"pattern":     datePattern,
						"description": "Optional: Start date for date range filter in YYYY-MM-DD format. Omit to get all history.",
					},
					"end_date": map[string]any{
						"type":        "string",
						"pattern":     datePattern,
						"description": "Optional: End date for date range filter in YYYY-MM-DD format. Omit to get all history.",
					},
				},
				"required": []string{},
			},
		},
		{
			Name: GetUserProfile,
			Description: "Get comprehensive user information including profile details, active challenges, team information, " +
				"and account status. Use this first to understand user context. Authentication via Authorization header.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
				"required":   []string{},
			},
		},
	}
}

// Resources returns the readable resources backed by the flat RPC methods
func Resources() []Resource {
	return []Resource{
		{
			URI:         ProfileURI,
			Name:        "User Profile",
			Description: "Current user profile and challenge information",
			MimeType:    "application/json",
		},
		{
			URI:         RecentStepsURI,
			Name:        "Recent Steps",
			Description: "Recent step data for the user",
			MimeType:    "application/json",
		},
	}
}
