package geo

const mapHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{.ProductName}} ({{.ProductCode}}) near {{.ZIP}}</title>
  <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css" />
  <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
  <style>
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #111827;
    }

    .header {
      padding: 12px 24px;
      background: linear-gradient(135deg, #463737 0%, #37393b 100%);
      color: #ffffff;
    }

    .product {
      font-size: 20px;
      font-weight: 700;
      letter-spacing: 0.05em;
    }

    .meta {
      font-size: 13px;
      opacity: 0.9;
    }

    #map {
      position: absolute;
      top: 64px;
      bottom: 0;
      width: 100%;
    }
  </style>
</head>
<body>
  <div class="header">
    <div class="product">{{.ProductName}}</div>
    <div class="meta">{{.ProductCode}} · {{len .Markers}} store(s) near {{.ZIP}} · generated {{.Generated}}</div>
  </div>
  <div id="map"></div>
  <script>
    var map = L.map('map').setView([{{.Center.Lat}}, {{.Center.Lon}}], {{.Zoom}});
    L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
      maxZoom: 19,
      attribution: '&copy; OpenStreetMap contributors'
    }).addTo(map);
    L.circleMarker([{{.Center.Lat}}, {{.Center.Lon}}], {radius: 6, color: '#463737'}).addTo(map).bindPopup({{.Center.Label}});
    {{range .Markers}}
    L.marker([{{.Lat}}, {{.Lon}}]).addTo(map).bindPopup({{.Label}});
    {{end}}
  </script>
</body>
</html>`
