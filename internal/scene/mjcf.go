package scene

import (
	"bytes"
	"fmt"
	"text/template"
)

var mjcfTemplate = template.Must(template.New("mjcf").Funcs(template.FuncMap{
	"f6":   func(v float64) string { return fmt.Sprintf("%.6f", v) },
	"f3":   func(v float64) string { return fmt.Sprintf("%.3f", v) },
	"half": func(v float64) string { return fmt.Sprintf("%.6f", v/2) },
}).Parse(`<mujoco model="block tower">
  <asset>
    <texture name="grid" type="2d" builtin="checker" rgb1=".1 .2 .3" rgb2=".2 .3 .4" width="600" height="600"/>
    <material name="grid" texture="grid" texrepeat="14 14" reflectance="0"/>
  </asset>
  <worldbody>
    <geom name="floor" size="1 1 .01" type="plane" material="grid"/>
    <light pos="0 0 1" castshadow="false" diffuse="1 1 1"/>
    <camera name="{{.Camera.Name}}" fovy="{{.Camera.FovY}}" mode="targetbody" target="lookhere" pos="{{f6 (index .Camera.Pos 0)}} {{f6 (index .Camera.Pos 1)}} {{f6 (index .Camera.Pos 2)}}" xyaxes="1 0 0 0 1 2"/>
{{- if .Static}}
    <body name="tower">
{{- range .Bodies}}
      <geom name="{{.Name}}" type="box" pos="{{f6 .Block.X}} {{f6 .Block.Y}} {{f6 .Block.Z}}" size="{{half .Block.LX}} {{half .Block.LY}} {{half .Block.LZ}}" rgba="{{f3 (index .RGBA 0)}} {{f3 (index .RGBA 1)}} {{f3 (index .RGBA 2)}} {{f3 (index .RGBA 3)}}"/>
{{- end}}
    </body>
{{- else}}
{{- range .Bodies}}
    <body name="{{.Name}}" pos="{{f6 .Block.X}} {{f6 .Block.Y}} {{f6 .Block.Z}}">
      <joint type="free"/>
      <geom name="{{.Name}}" type="box" size="{{half .Block.LX}} {{half .Block.LY}} {{half .Block.LZ}}" rgba="{{f3 (index .RGBA 0)}} {{f3 (index .RGBA 1)}} {{f3 (index .RGBA 2)}} {{f3 (index .RGBA 3)}}"/>
    </body>
{{- end}}
{{- end}}
    <body name="lookhere" pos="{{f6 (index .Camera.Target 0)}} {{f6 (index .Camera.Target 1)}} {{f6 (index .Camera.Target 2)}}"/>
  </worldbody>
</mujoco>
`))

// MJCF renders s as a MuJoCo world model.
func MJCF(s Scene) ([]byte, error) {
	var buf bytes.Buffer
	if err := mjcfTemplate.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("render mjcf: %w", err)
	}
	return buf.Bytes(), nil
}
