package config

import (
	"github.com/spf13/viper"
)

const (
	client    = "./src/client/"
	clientApp = "./public/"
	temp      = "./.tmp/"
	server    = "./bin/"
	views     = "./views/"
)

// SetDefaults registers the default project layout on v. The server port can
// also be overridden with the conventional PORT variable.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("paths.client", client)
	v.SetDefault("paths.client_app", clientApp)
	v.SetDefault("paths.temp", temp)
	v.SetDefault("paths.server", server)
	v.SetDefault("paths.views", views)
	v.SetDefault("paths.build", "./build/")
	v.SetDefault("paths.css", clientApp+"css/")
	v.SetDefault("paths.index", views+"layout.ejs")

	v.SetDefault("globs.sass", []string{clientApp + "scss/main.scss"})
	v.SetDefault("globs.bootstrap", []string{clientApp + "scss/**/bootstrap.scss"})
	v.SetDefault("globs.styles", []string{clientApp + "scss/**/*.scss"})
	v.SetDefault("globs.fonts", []string{"./bower_components/font-awesome/fonts/**"})
	v.SetDefault("globs.images", []string{client + "images/**/*.*"})
	v.SetDefault("globs.html_templates", []string{clientApp + "**/*.html"})
	v.SetDefault("globs.alljs", []string{"*.js", "./**/*.js", "!./node_modules/**", "!./bower_components/**"})
	v.SetDefault("globs.js", []string{
		server + "**/*",
		clientApp + "**/*.js",
		"!" + clientApp + "**/*.spec.js",
	})
	v.SetDefault("globs.reload", []string{
		"migrations/**/*.*",
		"config/**/*.*",
		clientApp + "scss/**/*.scss",
		"repositories/**/*.*",
		"models/**/*.*",
		"routes/**/*.*",
		"views/**/*.*",
		clientApp + "css/**/*.css",
		"!" + clientApp + "scss/main.scss",
	})

	v.SetDefault("template_cache.file", "templates.js")
	v.SetDefault("template_cache.module", "app.core")
	v.SetDefault("template_cache.standalone", false)
	v.SetDefault("template_cache.root", "app/")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 7203)
	v.SetDefault("server.command", "node")
	v.SetDefault("server.script", server+"www")
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.delay", "0s")
	_ = v.BindEnv("server.port", "FORGE_SERVER_PORT", "PORT")

	v.SetDefault("reload.port", 3000)
	v.SetDefault("reload.delay", "0s")
	v.SetDefault("reload.inject_changes", true)
	v.SetDefault("reload.notify", true)
	v.SetDefault("reload.debounce", "100ms")

	v.SetDefault("watch.style_tasks", []string{"sass"})
	v.SetDefault("watch.template_tasks", []string{"templatecache"})

	v.SetDefault("tools.sass.command", "sass")
	v.SetDefault("tools.sass.args", []string{"--no-source-map", "{input}", "{output}"})
	v.SetDefault("tools.autoprefixer.command", "postcss")
	v.SetDefault("tools.autoprefixer.args", []string{
		"{input}", "--use", "autoprefixer", "--no-map", "--replace",
	})
	v.SetDefault("tools.browsers", []string{"last 2 version", "> 5%"})
	v.SetDefault("tools.imagemin.command", "")
	v.SetDefault("tools.imagemin.args", []string{"-o4", "-out", "{output}", "{input}"})
	v.SetDefault("tools.jshint.command", "jshint")
	v.SetDefault("tools.jshint.args", []string{"--verbose", "{files}"})
	v.SetDefault("tools.jscs.command", "jscs")
	v.SetDefault("tools.jscs.args", []string{"{files}"})
	v.SetDefault("tools.workers", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
