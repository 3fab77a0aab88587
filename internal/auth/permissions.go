package auth

// Permission names checked by the admin routes.
const (
	ViewPosts   = "view_posts"
	CreatePosts = "create_posts"
	EditPosts   = "edit_posts"
	DeletePosts = "delete_posts"

	ViewPostCategories   = "view_post_categories"
	CreatePostCategories = "create_post_categories"
	EditPostCategories   = "edit_post_categories"
	DeletePostCategories = "delete_post_categories"

	ViewExperiences   = "view_experiences"
	CreateExperiences = "create_experiences"
	EditExperiences   = "edit_experiences"
	DeleteExperiences = "delete_experiences"

	ViewProjects   = "view_projects"
	CreateProjects = "create_projects"
	EditProjects   = "edit_projects"
	DeleteProjects = "delete_projects"

	ViewRoles   = "view_roles"
	CreateRoles = "create_roles"
	EditRoles   = "edit_roles"
	DeleteRoles = "delete_roles"

	AccessDeveloperPanel = "access_developer_panel"
	ViewActivity         = "view_activity"
)

// AllPermissions 返回全部权限名，顺序固定，供 seeder 与角色管理使用。
func AllPermissions() []string {
	return []string{
		ViewPosts, CreatePosts, EditPosts, DeletePosts,
		ViewPostCategories, CreatePostCategories, EditPostCategories, DeletePostCategories,
		ViewExperiences, CreateExperiences, EditExperiences, DeleteExperiences,
		ViewProjects, CreateProjects, EditProjects, DeleteProjects,
		ViewRoles, CreateRoles, EditRoles, DeleteRoles,
		AccessDeveloperPanel, ViewActivity,
	}
}
