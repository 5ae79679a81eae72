// Package controller turns annotated controller types into chi-backed routers.
//
// A controller is a pointer to a struct embedding Base. Its routing and
// middleware are declared once, at program start, with Define:
//
//	type PetsController struct {
//		controller.Base
//		store *Store
//	}
//
//	var _ = controller.MustDefine(controller.Default(), NewPetsController,
//		controller.Config(router.Options{Prefix: "/pets"}),
//		controller.Use(requestLog),
//		controller.Member("List", controller.Get("/")),
//		controller.Member("Create",
//			controller.Check(isAdmin),
//			controller.Post("/"),
//		),
//	)
//
// Annotations accumulate into one Metadata record per controller type.
// Annotation lists read like stacked decorators: the first annotation is the
// outermost step and the member body, a method named like the member, always
// runs last. The record is compiled lazily, once per instance, by
// Registry.Router.
package controller
