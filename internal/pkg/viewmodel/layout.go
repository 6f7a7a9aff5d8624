package viewmodel

import "github.com/gofiber/fiber/v2"

// OpenGraph holds the social preview tags for a page.
type OpenGraph struct {
	Title       string
	Description string
	Image       string
	URL         string
}

type Layout struct {
	Page          string
	FromProtected bool
	IsError       bool
	Msg           fiber.Map
	Username      string
	IsAdmin       bool
	Plan          string
	OGViewModel   *OpenGraph
}
