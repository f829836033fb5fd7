// Package views holds folio's default HTML components.
package views

//go:generate templ generate

import "github.com/eringen/folio"

// Default returns the stock component set for folio.New.
func Default() folio.ViewFuncs {
	return folio.ViewFuncs{
		Home:        Home,
		Posts:       Posts,
		Post:        Post,
		Projects:    Projects,
		Project:     Project,
		Login:       Login,
		Dashboard:   Dashboard,
		PostList:    PostList,
		ProjectList: ProjectList,
		AdminImages: AdminImages,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}
