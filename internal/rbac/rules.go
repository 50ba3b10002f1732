package rbac

const (
	RoleAnnotator = "annotator"
	RoleAdmin     = "admin"
)

// Known lists every permission a route checks.
var Known = []string{
	"dataset:list",
	"dataset:create",
	"dataset:edit",
	"dataset:delete",
	"labeling:open",
	"labeling:answer",
	"labeling:submit",
	"answers:view-all",
	"answers:export",
	"wizard:use",
	"wizard:export",
	"events:view",
}

// Default policy.
var RolePermissions = map[string][]string{
	RoleAnnotator: {
		"dataset:list",
		"labeling:*",
	},
	RoleAdmin: {
		"*", // everything
	},
}
