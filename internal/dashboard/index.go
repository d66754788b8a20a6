package dashboard

// indexHTML is the single dashboard page. It pulls the stored series and the
// live metadata from the JSON API and draws the price line on a canvas, no
// frontend build step involved.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>coinpulse</title>
<style>
body { font-family: sans-serif; margin: 2rem; background: #101418; color: #e6e6e6; }
.kpis { display: flex; gap: 2rem; margin: 1rem 0; }
.kpi span { display: block; font-size: 0.8rem; color: #8a939e; }
.kpi b { font-size: 1.2rem; }
canvas { background: #161b22; border: 1px solid #2a313a; width: 100%; }
input, button { background: #161b22; color: #e6e6e6; border: 1px solid #2a313a; padding: 0.3rem; }
#note { color: #8a939e; font-size: 0.8rem; }
</style>
</head>
<body>
<h2 id="title">coinpulse</h2>
<div>
coin <input id="coin" value="bitcoin">
from <input id="from" type="date">
to <input id="to" type="date">
<button onclick="refresh()">load</button>
</div>
<div class="kpis">
<div class="kpi"><span>price</span><b id="k-price">-</b></div>
<div class="kpi"><span>24h change</span><b id="k-chg">-</b></div>
<div class="kpi"><span>market cap</span><b id="k-mcap">-</b></div>
<div class="kpi"><span>24h volume</span><b id="k-vol">-</b></div>
</div>
<canvas id="chart" width="1200" height="320"></canvas>
<p id="note"></p>
<script>
function kfmt(x) {
  if (x == null) return "-";
  const a = Math.abs(x);
  if (a >= 1e9) return (x / 1e9).toFixed(2) + "B";
  if (a >= 1e6) return (x / 1e6).toFixed(2) + "M";
  if (a >= 1e3) return (x / 1e3).toFixed(2) + "K";
  return x.toFixed(2);
}
function draw(rows) {
  const c = document.getElementById("chart");
  const ctx = c.getContext("2d");
  ctx.clearRect(0, 0, c.width, c.height);
  const prices = rows.map(r => r.price).filter(p => p != null);
  if (!prices.length) return;
  const min = Math.min(...prices), max = Math.max(...prices);
  ctx.strokeStyle = "#58a6ff";
  ctx.beginPath();
  let i = 0;
  rows.forEach(r => {
    if (r.price == null) { i++; return; }
    const x = i / (rows.length - 1 || 1) * c.width;
    const y = c.height - 10 - (r.price - min) / (max - min || 1) * (c.height - 20);
    i === 0 ? ctx.moveTo(x, y) : ctx.lineTo(x, y);
    i++;
  });
  ctx.stroke();
}
async function refresh() {
  const coin = document.getElementById("coin").value;
  const from = document.getElementById("from").value;
  const to = document.getElementById("to").value;
  let q = "coin=" + encodeURIComponent(coin);
  if (from) q += "&from=" + from;
  if (to) q += "&to=" + to;
  const series = await (await fetch("/api/series?" + q)).json();
  draw(series.rows);
  document.getElementById("note").textContent =
    series.rows.length + " stored rows, " + series.from + " to " + series.to;
  const live = await (await fetch("/api/coin?id=" + encodeURIComponent(coin))).json();
  if (!live.live) {
    document.getElementById("title").textContent = coin + " (historical only)";
    return;
  }
  const md = live.coin.market_data;
  const vs = series.vs_currency || "usd";
  document.getElementById("title").textContent = live.coin.name + " (" + live.coin.symbol.toUpperCase() + ")";
  document.getElementById("k-price").textContent = kfmt(md.current_price[vs]);
  document.getElementById("k-chg").textContent = md.price_change_percentage_24h == null ? "-" : md.price_change_percentage_24h.toFixed(2) + "%";
  document.getElementById("k-mcap").textContent = kfmt(md.market_cap[vs]);
  document.getElementById("k-vol").textContent = kfmt(md.total_volume[vs]);
}
refresh();
</script>
</body>
</html>
`
