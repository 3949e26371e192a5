package bridge

// Method is the closed set of methods the bridge answers.
type Method int

const (
	MethodUnknown Method = iota
	MethodInitialize
	MethodInitialized
	MethodPing
	MethodToolsList
	MethodToolsCall
	MethodResourcesList
	MethodResourcesRead
	MethodAddSteps
	MethodGetSteps
	MethodGetUserProfile
)

var methodNames = map[Method]string{
	MethodInitialize:     "initialize",
	MethodInitialized:    "notifications/initialized",
	MethodPing:           "ping",
	MethodToolsList:      "tools/list",
	MethodToolsCall:      "tools/call",
	MethodResourcesList:  "resources/list",
	MethodResourcesRead:  "resources/read",
	MethodAddSteps:       "add_steps",
	MethodGetSteps:       "get_steps",
	MethodGetUserProfile: "get_user_profile",
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, len(methodNames))
	for k, v := range methodNames {
		m[v] = k
	}
	return m
}()

// ParseMethod maps a wire name to its Method, MethodUnknown otherwise.
func ParseMethod(name string) Method {
	return methodsByName[name]
}

func (m Method) String() string {
	if s, ok := methodNames[m]; ok {
		return s
	}
	return "unknown"
}
