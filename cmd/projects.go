package cmd

import (
	"context"
	"fmt"

	"github.com/longkey1/lome/internal/lome/render"
	"github.com/longkey1/lome/internal/lome/service"
	"github.com/spf13/cobra"
)

var (
	projectDescription string
	forceProjectDelete bool
)

// projectsCmd represents the projects command
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Manage projects",
	Long: `Manage projects including creating, listing, viewing, renaming and deleting them.

Project IDs can be given as a prefix (minimum 4 characters) or the full ID.`,
}

// projectsListCmd represents the projects list command
var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			projects, err := backend.ListProjects(ctx)
			if err != nil {
				return fmt.Errorf("listing projects: %w", err)
			}

			fmt.Print(r.Projects(projects))
			if len(projects) == 0 {
				fmt.Println(r.Dim("\nCreate one with:\n  lome projects new \"name\""))
			}
			return nil
		})
	},
}

// projectsNewCmd represents the projects new command
var projectsNewCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			project, err := backend.CreateProject(ctx, args[0], projectDescription)
			if err != nil {
				return fmt.Errorf("creating project: %w", err)
			}
			fmt.Printf("Project created: %s (%s)\n", project.ShortID(), project.Name)
			return nil
		})
	},
}

// projectsShowCmd represents the projects show command
var projectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			project, err := backend.FindProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding project: %w", err)
			}
			fmt.Print(r.Project(project))
			return nil
		})
	},
}

// projectsUpdateCmd represents the projects update command
var projectsUpdateCmd = &cobra.Command{
	Use:   "update <id> [name]",
	Short: "Rename a project or change its description",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var update service.ProjectUpdate
		if len(args) == 2 {
			update.Name = &args[1]
		}
		if cmd.Flags().Changed("description") {
			update.Description = &projectDescription
		}
		if update.Name == nil && update.Description == nil {
			return fmt.Errorf("nothing to update: give a new name or --description")
		}

		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			project, err := backend.FindProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding project: %w", err)
			}
			project, err = backend.UpdateProject(ctx, project.ID, update)
			if err != nil {
				return fmt.Errorf("updating project: %w", err)
			}
			fmt.Printf("Project %s updated.\n", project.ShortID())
			return nil
		})
	},
}

// projectsDeleteCmd represents the projects delete command
var projectsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a project",
	Long: `Delete a project permanently.

Warning: This action cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd.Context(), func(ctx context.Context, backend conversationBackend, r *render.Renderer) error {
			project, err := backend.FindProject(ctx, args[0])
			if err != nil {
				return fmt.Errorf("finding project: %w", err)
			}

			if !forceProjectDelete {
				fmt.Printf("Are you sure you want to delete project %s (%s)? [y/N]: ", project.ShortID(), project.Name)
				var response string
				fmt.Scanln(&response)

				if response != "y" && response != "Y" {
					fmt.Println("Deletion cancelled.")
					return nil
				}
			}

			if err := backend.DeleteProject(ctx, project.ID); err != nil {
				return fmt.Errorf("deleting project: %w", err)
			}
			fmt.Printf("Project %s deleted successfully.\n", project.ShortID())
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsNewCmd)
	projectsCmd.AddCommand(projectsShowCmd)
	projectsCmd.AddCommand(projectsUpdateCmd)
	projectsCmd.AddCommand(projectsDeleteCmd)

	projectsNewCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "Description of the project")
	projectsUpdateCmd.Flags().StringVarP(&projectDescription, "description", "d", "", "New description (empty clears it)")
	projectsDeleteCmd.Flags().BoolVarP(&forceProjectDelete, "force", "f", false, "Delete without confirmation")
}
