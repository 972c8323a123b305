package server

import _ "embed"

//go:embed public/index.html
var adminPage string
