/*
Copyright © 2024 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package rasterutil

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ctessum/gobra"
	"github.com/skratchdot/open-golang/open"
)

const guiAddress = "localhost:7171"

// setConfigHandler reads the configuration file given in the request and
// responds with the resulting values of all configuration options.
func setConfigHandler(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	configFile := r.Form.Get("config")
	Root.PersistentFlags().Set("config", configFile)
	if err := setConfig(); err != nil {
		http.Error(w, err.Error(), http.StatusNoContent)
		return
	}
	config := make(map[string]interface{})
	for _, option := range options {
		config[option.name] = Cfg.Get(option.name)
	}
	e := json.NewEncoder(w)
	if err := e.Encode(config); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// StartWebServer starts a web server that presents the command tree as a
// form in the browser.
func StartWebServer() {
	if err := setConfig(); err != nil {
		Log.WithError(err).Warn("reading configuration file")
	}

	http.HandleFunc("/setConfig", setConfigHandler)

	Log.Info("loading front-end")

	Root.SilenceUsage = true
	for _, cmd := range commands {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	output := template.Must(template.New("").Parse(guiTemplate))
	server := gobra.Server{Root: Root, ServerAddress: guiAddress, AllowCORS: false, HTML: output}
	Log.Info("server starting")
	open.Run("http://" + guiAddress)
	fmt.Println("If not opened automatically, please visit http://" + guiAddress)
	server.Start()
}

const guiTemplate = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>raster</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>raster</h1>
	<p>Choose a command and configure it below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
</div>

<script>
let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

// Reload the field values when the configuration file changes.
let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + guiAddress + `/setConfig?config="+encodeURIComponent(configInput.value))
		.then(res => {
			if (res.status == 204) {
				configInput.classList.remove("blue-border", "green-border");
				configInput.classList.add("red-border");
				return;
			}
			if (res.status !== 200) {
				res.text().then(t => console.log("Error fetching /setConfig: ", t));
				return;
			}
			res.json().then(data => {
				configInput.classList.remove("red-border");
				for (let key in data)
					for (let f of allFlags)
						if (f.dataset.name == key) {
							let input = f.children[0];
							let newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g,'');
							if (input.value != newValue) {
								input.value = newValue;
								input.classList.remove("blue-border");
								input.classList.add("green-border");
							}
						}
			})
		})
		.catch(err => console.log("Error fetching /setConfig", err))
})
</script>
</body>
</html>`
