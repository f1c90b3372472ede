package dashboard

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
)

type sliderView struct {
	Name  string
	Label string
	Unit  string
	Min   float64
	Max   float64
	Value float64
}

type pageData struct {
	ModelError   string
	Explanation  string
	Sliders      []sliderView
	SweepSteps   int
	HeatmapSteps int
}

func (d *Dashboard) pageData() pageData {
	info := d.modelInfo()
	data := pageData{
		ModelError:   info.Error,
		Explanation:  info.Explanation,
		SweepSteps:   d.opts.SweepSteps,
		HeatmapSteps: d.opts.HeatmapSteps,
	}
	def := features.Default()
	for _, axis := range features.Order {
		min, max := axis.Domain()
		data.Sliders = append(data.Sliders, sliderView{
			Name:  axis.String(),
			Label: axis.Label(),
			Unit:  axis.Unit(),
			Min:   min,
			Max:   max,
			Value: def.Get(axis),
		})
	}
	return data
}

func (d *Dashboard) handlePage(w http.ResponseWriter, r *http.Request) {
	d.session(w, r)

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, d.pageData()); err != nil {
		log.Error().Err(err).Msg("Failed to render dashboard page")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Msg("Failed to write dashboard page")
	}
}

var pageTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
    <title>Riesgo de incendio - Córdoba</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 1400px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #f7971e 0%, #d31027 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; }
        .header h1 { margin: 0; font-size: 2.2em; text-align: center; }
        .header p { margin: 8px 0 0; text-align: center; }
        .banner { background: #dc3545; color: white; padding: 15px; border-radius: 8px; margin-bottom: 20px; font-weight: bold; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 20px; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        .card h3 { margin-top: 0; color: #333; border-bottom: 2px solid #eee; padding-bottom: 10px; }
        .slider { margin: 12px 0; }
        .slider label { display: flex; justify-content: space-between; font-weight: 500; color: #666; }
        .slider input { width: 100%; }
        .alert { padding: 6px 10px; border-radius: 4px; margin: 6px 0; background: #fff3cd; color: #856404; }
        .alert-none { background: #d4edda; color: #155724; }
        .large-metric { font-size: 1.6em; text-align: center; margin: 10px 0; font-weight: bold; }
        .risk-low { color: #28a745; }
        .risk-high { color: #dc3545; }
        button { background: #d31027; color: white; border: none; padding: 10px 16px; border-radius: 6px; cursor: pointer; margin: 4px 4px 4px 0; }
        button.secondary { background: #6c757d; }
        table { width: 100%; border-collapse: collapse; margin-top: 10px; font-size: 0.9em; }
        th, td { text-align: left; padding: 6px; border-bottom: 1px solid #eee; }
        th { background-color: #f8f9fa; font-weight: 600; }
        .heat { display: grid; gap: 1px; margin-top: 10px; }
        .heat div { height: 10px; }
        .hole { background: repeating-linear-gradient(45deg, #ccc, #ccc 2px, #fff 2px, #fff 4px); }
        .muted { color: #888; font-size: 0.9em; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>Riesgo de incendio forestal</h1>
        <p>{{.Explanation}}</p>
    </div>

    {{if .ModelError}}
    <div class="banner" id="model-error">Modelo no disponible: {{.ModelError}}</div>
    {{end}}

    <div class="grid">
        <div class="card">
            <h3>Condiciones</h3>
            {{range .Sliders}}
            <div class="slider">
                <label for="{{.Name}}"><span>{{.Label}}</span><span><output id="{{.Name}}-value">{{.Value}}</output> {{.Unit}}</span></label>
                <input type="range" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="0.5" value="{{.Value}}">
            </div>
            {{end}}
            <button id="predict">Predecir</button>
        </div>

        <div class="card">
            <h3>Alertas</h3>
            <div id="alerts"><div class="alert alert-none">Sin alertas</div></div>
        </div>

        <div class="card">
            <h3>Predicción</h3>
            <div class="large-metric" id="label">-</div>
            <div class="large-metric" id="probability">-</div>
            <p id="advice" class="muted"></p>
            <div id="predict-error" class="alert" style="display:none"></div>
        </div>
    </div>

    <div class="grid" style="margin-top: 20px;">
        <div class="card">
            <h3>Historial de la sesión</h3>
            <p id="summary" class="muted">Sin predicciones</p>
            <button class="secondary" id="clear">Borrar historial</button>
            <button class="secondary" id="download">Descargar CSV</button>
            <button class="secondary" id="save">Guardar exportación</button>
            <p id="export-status" class="muted"></p>
            <table>
                <thead><tr><th>Fecha</th><th>Humedad</th><th>Viento</th><th>Temperatura</th><th>Predicción</th><th>Probabilidad</th><th>Alertas</th></tr></thead>
                <tbody id="history"></tbody>
            </table>
        </div>

        <div class="card">
            <h3>Sensibilidad a la humedad</h3>
            <table><tbody id="sweep"></tbody></table>
            <p class="muted">{{.SweepSteps}} puntos entre el mínimo y el máximo de humedad.</p>
        </div>

        <div class="card">
            <h3>Temperatura x humedad</h3>
            <div class="heat" id="heatmap"></div>
            <p class="muted">{{.HeatmapSteps}} x {{.HeatmapSteps}} celdas. Las celdas rayadas no tienen probabilidad.</p>
        </div>
    </div>
</div>

<script>
    const names = ['humidity', 'wind_speed', 'temperature'];
    const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
    let ws;

    function reading() {
        const v = {};
        names.forEach(n => { v[n] = parseFloat(document.getElementById(n).value); });
        return v;
    }

    function query(v) {
        return names.map(n => n + '=' + encodeURIComponent(v[n])).join('&');
    }

    function connect() {
        ws = new WebSocket(scheme + location.host + '/ws');
        ws.onopen = () => ws.send(JSON.stringify(reading()));
        ws.onmessage = event => renderAlerts(JSON.parse(event.data));
        ws.onclose = () => setTimeout(connect, 2000);
    }

    function renderAlerts(msg) {
        const box = document.getElementById('alerts');
        box.innerHTML = '';
        if (msg.error) {
            box.textContent = msg.error;
            return;
        }
        if (!msg.alerts.length) {
            box.innerHTML = '<div class="alert alert-none">Sin alertas</div>';
            return;
        }
        msg.alerts.forEach(a => {
            const div = document.createElement('div');
            div.className = 'alert';
            div.textContent = a.message;
            box.appendChild(div);
        });
    }

    async function refreshHistory() {
        const res = await fetch('/api/history');
        const data = await res.json();
        const tbody = document.getElementById('history');
        tbody.innerHTML = '';
        data.entries.slice().reverse().forEach(e => {
            const row = document.createElement('tr');
            const p = e.probability === null ? 'No disponible' : (e.probability * 100).toFixed(2) + '%';
            [new Date(e.timestamp).toLocaleString(), e.humidity, e.wind_speed, e.temperature,
             e.label === 'MODERATE_HIGH' ? 'MOD/ALTO' : 'BAJO', p, e.alert_count].forEach(c => {
                const td = document.createElement('td');
                td.textContent = c;
                row.appendChild(td);
            });
            tbody.appendChild(row);
        });
        const s = data.summary;
        document.getElementById('summary').textContent = s.count === 0 ? 'Sin predicciones' :
            s.count + ' predicciones, ' + s.count_high + ' con riesgo MOD/ALTO, probabilidad media ' + s.mean_probability_text;
    }

    async function refreshSweep() {
        const v = reading();
        const res = await fetch('/api/sweep/humidity?' + query(v));
        const tbody = document.getElementById('sweep');
        tbody.innerHTML = '';
        if (!res.ok) {
            tbody.innerHTML = '<tr><td>' + (await res.json()).error + '</td></tr>';
            return;
        }
        const data = await res.json();
        data.points.filter((_, i) => i % 5 === 0).forEach(p => {
            const row = document.createElement('tr');
            row.innerHTML = '<td>' + p.value.toFixed(1) + ' %</td><td>' +
                (p.probability === null ? 'No disponible' : (p.probability * 100).toFixed(2) + '%') + '</td>';
            tbody.appendChild(row);
        });
    }

    async function refreshHeatmap() {
        const v = reading();
        const res = await fetch('/api/sweep/heatmap?x=temperature&y=humidity&' + query(v));
        const box = document.getElementById('heatmap');
        box.innerHTML = '';
        if (!res.ok) {
            return;
        }
        const grid = await res.json();
        box.style.gridTemplateColumns = 'repeat(' + grid.values_b.length + ', 1fr)';
        grid.cells.slice().reverse().forEach(row => row.forEach(p => {
            const cell = document.createElement('div');
            if (p === null) {
                cell.className = 'hole';
            } else {
                cell.style.background = 'rgb(' + Math.round(255 * p) + ',' + Math.round(200 * (1 - p)) + ',60)';
            }
            box.appendChild(cell);
        }));
    }

    async function predict() {
        const res = await fetch('/api/predict', {
            method: 'POST',
            headers: {'Content-Type': 'application/json'},
            body: JSON.stringify(reading()),
        });
        const data = await res.json();
        const errBox = document.getElementById('predict-error');
        if (!res.ok) {
            errBox.style.display = 'block';
            errBox.textContent = data.error;
            return;
        }
        errBox.style.display = 'none';
        const label = document.getElementById('label');
        label.textContent = data.display.label;
        label.className = 'large-metric ' + (data.result.label === 'MODERATE_HIGH' ? 'risk-high' : 'risk-low');
        document.getElementById('probability').textContent = data.display.probability;
        document.getElementById('advice').textContent = data.display.advice;
        refreshHistory();
    }

    async function saveExport() {
        const res = await fetch('/api/history/export', {method: 'POST'});
        const data = await res.json();
        document.getElementById('export-status').textContent = res.ok ? 'Guardado en ' + data.path : data.error;
    }

    names.forEach(n => {
        const input = document.getElementById(n);
        input.addEventListener('input', () => {
            document.getElementById(n + '-value').textContent = input.value;
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(reading()));
            }
        });
        input.addEventListener('change', () => { refreshSweep(); refreshHeatmap(); });
    });

    document.getElementById('predict').addEventListener('click', predict);
    document.getElementById('clear').addEventListener('click', async () => {
        await fetch('/api/history', {method: 'DELETE'});
        refreshHistory();
    });
    document.getElementById('download').addEventListener('click', () => { location.href = '/api/history/export'; });
    document.getElementById('save').addEventListener('click', saveExport);

    connect();
    refreshHistory();
    refreshSweep();
    refreshHeatmap();
</script>
</body>
</html>
`))
