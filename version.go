package eventagent

// Version is the library version, overridable at build time with
// -ldflags "-X github.com/epicstage/Event-agent-backend-kr-sub004.Version=...".
var Version = "0.1.0"
