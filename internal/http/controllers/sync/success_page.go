package sync

// successPage is served once the provider account is linked. The window was
// opened by the frontend, so the page just tells the user to close it.
const successPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Connection successful</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      background-color: #f5f5f5;
      display: flex;
      align-items: center;
      justify-content: center;
      height: 100vh;
      margin: 0;
    }
    .card {
      background: #fff;
      border-radius: 12px;
      box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1);
      padding: 48px;
      text-align: center;
      max-width: 420px;
    }
    h1 { font-size: 22px; color: #1a1a1a; margin: 0 0 12px; }
    p { font-size: 15px; color: #555; margin: 0; }
  </style>
</head>
<body>
  <div class="card">
    <h1>Your account has been connected</h1>
    <p>You can close this window and return to the application.</p>
  </div>
</body>
</html>`
